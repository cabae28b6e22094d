package tui

import (
	"fmt"
	"time"

	"github.com/fentz26/caretaker/internal/models"
)

// MonitorItem is a running monitor in the fleet list.
type MonitorItem struct {
	models.MonitorInfo
	now time.Time
}

func (i MonitorItem) FilterValue() string { return string(i.AccountID) }
func (i MonitorItem) Title() string       { return string(i.AccountID) }
func (i MonitorItem) Description() string {
	uptime := i.now.Sub(i.StartedAt).Truncate(time.Second)
	return fmt.Sprintf("%s • up %s", formatState(i.State), uptime)
}

// AccountDetail is everything the detail screen shows for one account.
type AccountDetail struct {
	AccountID models.AccountID
	Snapshot  *models.SnapshotRecord
	Decisions []models.DecisionRecord
	Errors    []models.ErrorRecord
}
