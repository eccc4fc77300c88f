package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"HolyLedger/internal/config"
	"HolyLedger/internal/ledger"
	"HolyLedger/internal/logger"
	"HolyLedger/internal/metrics"
	"HolyLedger/internal/notifier"
	"HolyLedger/internal/recorder"
	"HolyLedger/internal/scheduler"
	"HolyLedger/internal/server"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	defaultConfig := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	configFlag := flag.String("config", defaultConfig, "path to the YAML config (or set CONFIG_PATH env var)")
	envFileFlag := flag.String("env-file", ".env", "dotenv file loaded before the config")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	httpAddrFlag := flag.String("http-addr", "", "ops HTTP listen address (overrides http.addr / HTTP_ADDR)")
	runOnStartFlag := flag.Bool("run-on-start", os.Getenv("RUN_ON_START") == "true", "run one keeper cycle right after start")
	flag.Parse()

	log := logger.New(*verboseFlag)
	log.Info("HolyLedger starting", "version", version, "commit", commit)
	metrics.BuildInfo.WithLabelValues(version, commit).Set(1)

	if err := config.LoadDotEnv(*envFileFlag); err != nil {
		return err
	}
	cfg, err := config.Load(*configFlag)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *httpAddrFlag != "" {
		cfg.HTTP.Addr = *httpAddrFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", "error", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	lcfg, err := cfg.LedgerConfig()
	if err != nil {
		return err
	}
	clock := clockwork.NewRealClock()
	lcfg.Clock = clock
	lcfg.Logger = log
	lcfg.Recorder = rec
	l, err := ledger.New(lcfg)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		sender notifier.Sender
		tn     *notifier.TelegramNotifier
	)
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		sender = tn
	} else {
		log.Info("telegram not configured, reports are logged only")
	}

	sched := scheduler.NewScheduler(ctx, l, sender, log, clock)
	if err := sched.RegisterAll(cfg.Schedule.KeeperCron, cfg.Schedule.SnapshotCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	srv := server.New(cfg.HTTP.Addr, l, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	if *runOnStartFlag {
		log.Info("run-on-start enabled, executing keeper cycle now")
		go sched.RunKeeperNow()
	}

	log.Info("HolyLedger is running. Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("http server shutdown", "error", err)
	}
	if _, err := l.SaveSnapshot(); err != nil {
		log.Warn("final snapshot", "error", err)
	}
	log.Info("HolyLedger stopped")
	return nil
}
