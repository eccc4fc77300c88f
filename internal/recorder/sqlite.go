package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"HolyLedger/internal/model"
)

// SQLiteRecorder persists ledger history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *slog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *slog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("recorder: sqlite opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			timestamp  INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			source     TEXT,
			account    TEXT,
			amounts    TEXT,
			note       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			sequence         INTEGER,
			total_shares     TEXT,
			total_assets     TEXT,
			reserve_balance  TEXT,
			price_per_share  TEXT,
			endowment        TEXT,
			bonus            TEXT,
			total_weight     TEXT,
			powercard_phase  TEXT,
			body             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordEvent(evt *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	amounts, err := json.Marshal(amountStrings(evt))
	if err != nil {
		return fmt.Errorf("encode amounts: %w", err)
	}
	_, err = r.db.Exec(`INSERT INTO events
		(id, timestamp, kind, source, account, amounts, note)
		VALUES (?,?,?,?,?,?,?)`,
		evt.ID, evt.Time.UnixMilli(), string(evt.Kind),
		evt.Source.Hex(), evt.Account.Hex(), string(amounts), evt.Note,
	)
	return err
}

func (r *SQLiteRecorder) RecordSnapshot(snap *model.LedgerSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = r.db.Exec(`INSERT INTO snapshots
		(timestamp, sequence, total_shares, total_assets, reserve_balance, price_per_share,
		 endowment, bonus, total_weight, powercard_phase, body)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		snap.UpdatedAt.UnixMilli(), snap.Sequence,
		snap.Pool.TotalShares, snap.Pool.TotalAssets, snap.Pool.ReserveBalance, snap.Pool.PricePerShare,
		snap.Treasury.EndowmentBalance, snap.Treasury.BonusBalance, snap.Treasury.TotalWeight,
		snap.Treasury.PowercardPhase, string(body),
	)
	return err
}

// RecentEvents returns up to limit events, newest first.
func (r *SQLiteRecorder) RecentEvents(limit int) ([]StoredEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, timestamp, kind, source, account, amounts, note
		FROM events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			e       StoredEvent
			ts      int64
			kind    string
			amounts string
		)
		if err := rows.Scan(&e.ID, &ts, &kind, &e.Source, &e.Account, &amounts, &e.Note); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.Kind = model.EventKind(kind)
		if err := json.Unmarshal([]byte(amounts), &e.Amounts); err != nil {
			return nil, fmt.Errorf("decode amounts of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("recorder: closing sqlite")
	return r.db.Close()
}
