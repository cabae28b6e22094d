package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/fentz26/caretaker/internal/models"
	toml "github.com/pelletier/go-toml/v2"
)

// File reads the desired set from a local TOML file:
//
//	[[accounts]]
//	id = "1234"
//	session = "..."
//
// The file is re-read on every call so edits apply on the next reconcile.
type File struct {
	path string
}

// NewFile creates a file registry.
func NewFile(path string) *File {
	return &File{path: path}
}

type fileDocument struct {
	Accounts []fileAccount `toml:"accounts"`
}

type fileAccount struct {
	ID      string `toml:"id"`
	Session string `toml:"session"`
}

// ListDesired parses the file.
func (f *File) ListDesired(ctx context.Context) (map[models.AccountID]models.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var doc fileDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode registry file: %w", err)
	}

	records := make([]record, 0, len(doc.Accounts))
	for _, a := range doc.Accounts {
		records = append(records, record{UserID: accountID(a.ID), Session: a.Session})
	}
	return collect(records), nil
}

// WriteFile writes accounts to path in the File registry format.
func WriteFile(path string, accounts map[models.AccountID]models.Credential) error {
	doc := fileDocument{Accounts: make([]fileAccount, 0, len(accounts))}
	for id, cred := range accounts {
		doc.Accounts = append(doc.Accounts, fileAccount{ID: string(id), Session: string(cred)})
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode registry file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write registry file: %w", err)
	}
	return nil
}
