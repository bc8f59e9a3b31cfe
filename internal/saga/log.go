package saga

import (
	"context"
	"encoding/json"
	"time"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry adalah satu baris audit: hasil satu step (atau kompensasi) dari satu saga.
// Entries are append-only; Seq orders them within and across sagas.
type Entry struct {
	Seq       int64           `json:"seq"`
	SagaID    string          `json:"sagaId"`
	Step      string          `json:"step"`
	Status    Status          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Log is the persisted narrative of saga attempts.
type Log interface {
	// Append stores e and returns it with Seq and CreatedAt filled in.
	Append(ctx context.Context, e Entry) (Entry, error)
	// Entries returns every entry of sagaID ordered by Seq.
	Entries(ctx context.Context, sagaID string) ([]Entry, error)
}

// Latest returns the newest entry with the given step and status.
func Latest(entries []Entry, step string, status Status) (Entry, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Step == step && entries[i].Status == status {
			return entries[i], true
		}
	}
	return Entry{}, false
}
