package recorder

import (
	"time"

	"HolyLedger/internal/model"
)

// StoredEvent is an event as read back from the history, amounts as decimal strings.
type StoredEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      model.EventKind   `json:"kind"`
	Source    string            `json:"source"`
	Account   string            `json:"account"`
	Amounts   map[string]string `json:"amounts"`
	Note      string            `json:"note,omitempty"`
}

// Recorder persists ledger history for analysis.
type Recorder interface {
	RecordEvent(evt *model.Event) error
	RecordSnapshot(snap *model.LedgerSnapshot) error
	RecentEvents(limit int) ([]StoredEvent, error)
	Close() error
}

func amountStrings(evt *model.Event) map[string]string {
	out := make(map[string]string, len(evt.Amounts))
	for k, v := range evt.Amounts {
		out[k] = v.Dec()
	}
	return out
}
