package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"

	"HolyLedger/internal/model"
)

// LoadState reads the last saved ledger summary. Returns a zero summary if the file doesn't exist.
func LoadState(filePath string) (*model.LedgerSnapshot, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.LedgerSnapshot{}, nil
		}
		return nil, err
	}
	var state model.LedgerSnapshot
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveState writes the ledger summary to a JSON file.
func SaveState(filePath string, state *model.LedgerSnapshot) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}

// SaveSnapshot bumps the snapshot sequence, then persists the summary to the
// recorder and, when configured, the state file.
func (l *Ledger) SaveSnapshot() (*model.LedgerSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequence++
	snap := l.snapshotLocked(l.Now())
	if err := l.rec.RecordSnapshot(snap); err != nil {
		l.log.Error("ledger: record snapshot", "error", err)
	}
	if l.cfg.StateFile != "" {
		if err := SaveState(l.cfg.StateFile, snap); err != nil {
			return snap, err
		}
	}
	return snap, nil
}
