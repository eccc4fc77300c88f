package recorder

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"HolyLedger/internal/model"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "ledger.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRecorderEvents(t *testing.T) {
	t.Parallel()
	r := newTestRecorder(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, kind := range []model.EventKind{model.EventDeposit, model.EventWithdraw} {
		evt := model.NewEvent(kind, common.HexToAddress("0x9001"), common.HexToAddress("0xa1"),
			"requested", uint256.NewInt(uint64(100+i)), "actual", uint256.NewInt(uint64(99+i)))
		evt.ID = uuid.NewString()
		evt.Time = ts.Add(time.Duration(i) * time.Minute)
		require.NoError(t, r.RecordEvent(&evt))
	}

	got, err := r.RecentEvents(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, model.EventWithdraw, got[0].Kind)
	require.Equal(t, "101", got[0].Amounts["requested"])
	require.Equal(t, "100", got[0].Amounts["actual"])
	require.Equal(t, ts.Add(time.Minute), got[0].Timestamp)
	require.Equal(t, common.HexToAddress("0xa1").Hex(), got[1].Account)

	got, err = r.RecentEvents(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSQLiteRecorderRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()
	r := newTestRecorder(t)
	evt := model.NewEvent(model.EventDeposit, common.Address{}, common.Address{})
	evt.ID = uuid.NewString()

	require.NoError(t, r.RecordEvent(&evt))
	require.Error(t, r.RecordEvent(&evt))
}

func TestSQLiteRecorderSnapshots(t *testing.T) {
	t.Parallel()
	r := newTestRecorder(t)
	snap := &model.LedgerSnapshot{
		Pool:      model.PoolSnapshot{TotalShares: "100", TotalAssets: "110", PricePerShare: "1100000000000000000"},
		Treasury:  model.TreasurySnapshot{EndowmentBalance: "5", PowercardPhase: "UNSTAKED"},
		Sequence:  7,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, r.RecordSnapshot(snap))

	var (
		count int
		pps   string
	)
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*), MAX(price_per_share) FROM snapshots`).Scan(&count, &pps))
	require.Equal(t, 1, count)
	require.Equal(t, "1100000000000000000", pps)
}

func TestNoopRecorder(t *testing.T) {
	t.Parallel()
	var r Recorder = NewNoopRecorder()
	require.NoError(t, r.RecordEvent(&model.Event{}))
	got, err := r.RecentEvents(5)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, r.Close())
}
