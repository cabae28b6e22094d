package tui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fentz26/caretaker/internal/controlplane"
	"github.com/fentz26/caretaker/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

const detailDecisions = 10

var errNotFound = errors.New("not found")

// Client wraps HTTP calls to the caretaker control plane.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// Fleet fetches the running monitors.
func (c *Client) Fleet() (*controlplane.FleetResponse, error) {
	var fleet controlplane.FleetResponse
	if err := c.get("/fleet", &fleet); err != nil {
		return nil, err
	}
	return &fleet, nil
}

// Account fetches the latest snapshot, recent decisions and recent errors
// for one account. A missing snapshot is not an error.
func (c *Client) Account(id models.AccountID) (*AccountDetail, error) {
	base := "/accounts/" + url.PathEscape(string(id))
	detail := &AccountDetail{AccountID: id}

	var snap models.SnapshotRecord
	switch err := c.get(base+"/snapshot", &snap); {
	case err == nil:
		detail.Snapshot = &snap
	case !errors.Is(err, errNotFound):
		return nil, err
	}

	if err := c.get(fmt.Sprintf("%s/decisions?limit=%d", base, detailDecisions), &detail.Decisions); err != nil {
		return nil, err
	}
	if err := c.get(base+"/errors", &detail.Errors); err != nil {
		return nil, err
	}
	return detail, nil
}

func (c *Client) get(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s", strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
