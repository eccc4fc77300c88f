package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"HolyLedger/internal/ledger"
	"HolyLedger/internal/model"
	"HolyLedger/internal/redeemer"
	"HolyLedger/internal/valor"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []string
	failures int32
	updates  []telegramUpdate
	served   bool
}

func (f *fakeTelegram) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bottoken/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&f.failures, -1) >= 0 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.sent = append(f.sent, payload["text"])
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/bottoken/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		var updates []telegramUpdate
		if !f.served {
			updates, f.served = f.updates, true
		}
		f.mu.Unlock()
		if len(updates) == 0 {
			time.Sleep(10 * time.Millisecond)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": updates})
	})
	return mux
}

func (f *fakeTelegram) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestNotifier(t *testing.T, fake *fakeTelegram) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	tn := NewTelegramNotifier("token", "42", "", slog.New(slog.DiscardHandler))
	tn.APIBase = srv.URL
	tn.Backoff = time.Millisecond
	t.Cleanup(func() {
		srv.Close()
		tn.Client.CloseIdleConnections()
	})
	return tn
}

func TestSendWithRetry(t *testing.T) {
	fake := &fakeTelegram{failures: 2}
	tn := newTestNotifier(t, fake)

	require.NoError(t, tn.SendWithRetry(context.Background(), "hello", 3))
	assert.Equal(t, []string{"hello"}, fake.messages())
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	fake := &fakeTelegram{failures: 10}
	tn := newTestNotifier(t, fake)

	err := tn.SendWithRetry(context.Background(), "hello", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
	assert.Empty(t, fake.messages())
}

func TestStartPolling_RepliesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakeTelegram{}
	fake.updates = make([]telegramUpdate, 2)
	require.NoError(t, json.Unmarshal([]byte(`[
		{"update_id": 7, "message": {"text": " /pool "}},
		{"update_id": 8}
	]`), &fake.updates))

	srv := httptest.NewServer(fake.handler())
	tn := NewTelegramNotifier("token", "42", "", slog.New(slog.DiscardHandler))
	tn.APIBase = srv.URL
	tn.Backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		tn.StartPolling(ctx, func(cmd string) string {
			got = append(got, cmd)
			return "pool status"
		})
	}()

	require.Eventually(t, func() bool { return len(fake.messages()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	srv.Close()
	tn.Client.CloseIdleConnections()

	assert.Equal(t, []string{"/pool"}, got)
	assert.Equal(t, []string{"pool status"}, fake.messages())
}

func TestFormatKeeperReport(t *testing.T) {
	report := &ledger.KeeperReport{
		StartedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Harvests: []ledger.HarvestOutcome{{
			Name: "alpha",
			Result: &valor.HarvestResult{
				Received: uint256.NewInt(8_499_999),
				Expected: uint256.NewInt(8_500_000),
			},
		}},
		Redemptions: []*redeemer.Redemption{{
			Total:       uint256.NewInt(8_499_999),
			PoolCut:     uint256.NewInt(6_800_001),
			TreasuryCut: uint256.NewInt(849_999),
			OpsCut:      uint256.NewInt(849_999),
		}},
		Invested: map[common.Address]*uint256.Int{common.HexToAddress("0x7a01"): uint256.NewInt(6_800_001)},
		Snapshot: &model.LedgerSnapshot{
			Pool:   model.PoolSnapshot{TotalAssets: "106800001", ReserveBalance: "15000000", ReserveTarget: "15000000", PricePerShare: "1068000010000000000", SafeCapacity: "0"},
			Valors: []model.ValorSnapshot{{Name: "alpha", AmountInvested: "91800001", AccruedYield: "0"}},
		},
	}

	msg := FormatKeeperReport(report)
	assert.Contains(t, msg, "2026-03-02 09:00")
	assert.Contains(t, msg, "alpha harvested 8.499999 USDC (expected 8.5)")
	assert.Contains(t, msg, "treasury: 0.849999")
	assert.Contains(t, msg, "pool: 6.800001")
	assert.Contains(t, msg, "6.800001 USDC across 1 valors")
	assert.Contains(t, msg, "Total assets: 106.800001 USDC")
	assert.Contains(t, msg, "Price per share: 1.06800001")
	assert.NotContains(t, msg, "failed")
}

func TestFormatTreasuryStatus(t *testing.T) {
	snap := &model.LedgerSnapshot{Treasury: model.TreasurySnapshot{
		EndowmentBalance:    "1200000000",
		BonusBalance:        "500000",
		TotalStakedBase:     "1000000000000000000000",
		TotalStakedLP:       "0",
		EndowmentPercentage: "500000000000000000",
		PowercardPhase:      "ACTIVE",
		PowercardHolder:     "0x00000000000000000000000000000000000000A1",
	}}
	msg := FormatTreasuryStatus(snap)
	assert.Contains(t, msg, "Endowment: 1200 USDC")
	assert.Contains(t, msg, "Bonus owed: 0.5 USDC")
	assert.Contains(t, msg, "Staked: 1000 HH, 0 HHLP")
	assert.Contains(t, msg, "Endowment share: 0.5")
	assert.True(t, strings.Contains(msg, "Powercard: ACTIVE (0x"))
}
