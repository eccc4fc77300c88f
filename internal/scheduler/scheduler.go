package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"HolyLedger/internal/ledger"
	"HolyLedger/internal/metrics"
	"HolyLedger/internal/notifier"
)

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Ledger   *ledger.Ledger
	Notifier notifier.Sender // nil disables reports
	Log      *slog.Logger
	Clock    clockwork.Clock
	Ctx      context.Context
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct{ log *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("scheduler: cron "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("scheduler: cron "+msg, append(keysAndValues, "error", err)...)
}

// NewScheduler creates a new Scheduler. Overlapping runs of the same job are skipped.
func NewScheduler(ctx context.Context, l *ledger.Ledger, n notifier.Sender, log *slog.Logger, clock clockwork.Clock) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Ledger:   l,
		Notifier: n,
		Log:      log,
		Clock:    clock,
		Ctx:      ctx,
	}
}

// RegisterAll registers the keeper cycle and the periodic snapshot.
func (s *Scheduler) RegisterAll(keeperCron, snapshotCron string) error {
	if _, err := s.Cron.AddFunc(keeperCron, func() { s.keeperTask() }); err != nil {
		return fmt.Errorf("register keeper task: %w", err)
	}
	if _, err := s.Cron.AddFunc(snapshotCron, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler: started", "jobs", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler: stopped")
}

// RunKeeperNow executes the keeper cycle immediately (for manual trigger / --run-on-start).
func (s *Scheduler) RunKeeperNow() *ledger.KeeperReport {
	return s.keeperTask()
}

func (s *Scheduler) observe(job string, start time.Time, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	metrics.KeeperRunsTotal.WithLabelValues(job, status).Inc()
	metrics.KeeperDuration.WithLabelValues(job).Observe(s.Clock.Since(start).Seconds())
}

func (s *Scheduler) keeperTask() *ledger.KeeperReport {
	s.Log.Info("scheduler: running keeper cycle")
	start := s.Clock.Now()
	report := s.Ledger.KeeperCycle()
	err := report.Err()
	s.observe("keeper", start, err != nil)
	if err != nil {
		s.Log.Error("scheduler: keeper cycle", "error", err)
	}
	s.trySend(notifier.FormatKeeperReport(report))
	return report
}

func (s *Scheduler) snapshotTask() {
	start := s.Clock.Now()
	_, err := s.Ledger.SaveSnapshot()
	s.observe("snapshot", start, err != nil)
	if err != nil {
		s.Log.Error("scheduler: save snapshot", "error", err)
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/pool":
		return notifier.FormatPoolStatus(s.Ledger.Snapshot())
	case "/treasury":
		return notifier.FormatTreasuryStatus(s.Ledger.Snapshot())
	case "/harvest":
		return notifier.FormatKeeperReport(s.keeperTaskQuiet())
	default:
		return notifier.FormatHelp()
	}
}

// keeperTaskQuiet runs the cycle for a command; the reply carries the report.
func (s *Scheduler) keeperTaskQuiet() *ledger.KeeperReport {
	start := s.Clock.Now()
	report := s.Ledger.KeeperCycle()
	s.observe("keeper", start, report.Err() != nil)
	return report
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Log.Error("scheduler: send notification", "error", err)
	}
}
