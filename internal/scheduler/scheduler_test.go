package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/ledger"
	"HolyLedger/internal/notifier"
	"HolyLedger/internal/token"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	admin  = common.HexToAddress("0xad")
	proxy  = common.HexToAddress("0xf0")
	ops    = common.HexToAddress("0x0b5")
	alice  = common.HexToAddress("0xa1")
	valorA = common.HexToAddress("0x7a01")
)

func usdc(s string) *uint256.Int {
	return calculator.MustParseDecimal(s, token.Decimals[token.BaseAsset])
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (r *recordingSender) SendWithRetry(_ context.Context, text string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return r.err
}

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(ledger.Config{
		Admin:         admin,
		TransferProxy: proxy,
		Operations:    ops,
		ReserveTarget: usdc("15"),
		Valors:        []ledger.ValorConfig{{Name: "alpha", Address: valorA, Vault: common.HexToAddress("0x5a01")}},
		Genesis:       []ledger.Grant{{Account: proxy, Asset: token.BaseAsset, Amount: usdc("1000")}},
		Clock:         clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
		Logger:        slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	return l
}

func newScheduler(t *testing.T, sender notifier.Sender) (*Scheduler, *ledger.Ledger) {
	t.Helper()
	l := newLedger(t)
	s := NewScheduler(context.Background(), l, sender, slog.New(slog.DiscardHandler), clockwork.NewFakeClock())
	return s, l
}

func TestRegisterAll(t *testing.T) {
	s, _ := newScheduler(t, nil)
	require.NoError(t, s.RegisterAll("0 0 */6 * * *", "0 */15 * * * *"))
	assert.Len(t, s.Cron.Entries(), 2)

	s2, _ := newScheduler(t, nil)
	require.Error(t, s2.RegisterAll("every six hours", "0 */15 * * * *"))
}

func TestStartStop(t *testing.T) {
	s, _ := newScheduler(t, nil)
	require.NoError(t, s.RegisterAll("0 0 */6 * * *", "0 */15 * * * *"))
	s.Start()
	s.Stop()
}

func TestRunKeeperNow_SendsReport(t *testing.T) {
	sender := &recordingSender{}
	s, l := newScheduler(t, sender)

	_, err := l.Deposit(proxy, alice, usdc("100"))
	require.NoError(t, err)
	_, err = l.InvestIdle()
	require.NoError(t, err)
	require.NoError(t, l.AccrueYield(admin, valorA, usdc("8.5")))

	report := s.RunKeeperNow()
	require.NoError(t, report.Err())
	require.Len(t, report.Harvests, 1)
	require.Len(t, sender.msgs, 1)
	assert.Contains(t, sender.msgs[0], "alpha harvested")
	assert.Equal(t, uint64(1), report.Snapshot.Sequence)
}

func TestRunKeeperNow_SendFailureIsLogged(t *testing.T) {
	sender := &recordingSender{err: errors.New("telegram down")}
	s, _ := newScheduler(t, sender)

	report := s.RunKeeperNow()
	require.NoError(t, report.Err())
	assert.Len(t, sender.msgs, 1)
}

func TestRunKeeperNow_WithoutNotifier(t *testing.T) {
	s, _ := newScheduler(t, nil)
	report := s.RunKeeperNow()
	require.NoError(t, report.Err())
}

func TestSnapshotTask(t *testing.T) {
	s, l := newScheduler(t, nil)
	s.snapshotTask()
	s.snapshotTask()
	assert.Equal(t, uint64(2), l.Snapshot().Sequence)
}

func TestHandleCommand(t *testing.T) {
	sender := &recordingSender{}
	s, l := newScheduler(t, sender)
	_, err := l.Deposit(proxy, alice, usdc("40"))
	require.NoError(t, err)

	assert.Contains(t, s.HandleCommand("/pool"), "Total assets: 40 USDC")
	assert.Contains(t, s.HandleCommand("/treasury"), "Powercard: UNSTAKED")
	assert.Contains(t, s.HandleCommand("/harvest"), "HolyLedger keeper")
	assert.Contains(t, s.HandleCommand("hello"), "/harvest")
	// Command replies go back through the poller, not the report channel.
	assert.Empty(t, sender.msgs)
}
