package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AuditRecord is one armed job as written to the audit file.
type AuditRecord struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	ReminderID int64      `json:"reminder_id"`
	FireAt     *time.Time `json:"fire_at,omitempty"`
	Rule       string     `json:"rule,omitempty"`
}

// Audit persists snapshots of the armed-job set to a JSON file for
// operational inspection. It is write-mostly; recovery reads the reminder
// store, never this file.
type Audit struct {
	path string
}

// NewAudit creates an audit writer for the given path, creating parent
// directories as needed.
func NewAudit(path string) (*Audit, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	return &Audit{path: path}, nil
}

// Save writes the armed set atomically via a temp file and rename, so a
// crash mid-write never leaves a truncated snapshot.
func (a *Audit) Save(records []AuditRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit records: %w", err)
	}

	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write audit temp file: %w", err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("rename audit file: %w", err)
	}
	return nil
}

// Load reads the last saved snapshot. A missing file yields an empty set.
func (a *Audit) Load() ([]AuditRecord, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read audit file: %w", err)
	}

	var records []AuditRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse audit file: %w", err)
	}
	return records, nil
}
