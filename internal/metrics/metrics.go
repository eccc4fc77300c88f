package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "holyledger_build_info",
			Help: "Build information of the ledger daemon",
		},
		[]string{"version", "commit"},
	)

	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holyledger_operations_total",
			Help: "Total number of ledger operations",
		},
		[]string{"operation", "status"},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holyledger_events_total",
			Help: "Total number of committed ledger events",
		},
		[]string{"kind"},
	)

	PoolPricePerShare = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holyledger_pool_price_per_share",
			Help: "Pool price per share",
		},
	)

	PoolTotalAssets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holyledger_pool_total_assets",
			Help: "Pool total assets in base asset units",
		},
	)

	PoolReserve = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holyledger_pool_reserve",
			Help: "Idle base asset held by the pool",
		},
	)

	ValorInvested = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "holyledger_valor_amount_invested",
			Help: "Principal invested by each valor",
		},
		[]string{"valor"},
	)

	TreasuryEndowment = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holyledger_treasury_endowment",
			Help: "Treasury endowment balance",
		},
	)

	TreasuryBonus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holyledger_treasury_bonus",
			Help: "Treasury bonus balance owed to stakers",
		},
	)

	KeeperRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holyledger_keeper_runs_total",
			Help: "Total number of keeper job runs",
		},
		[]string{"job", "status"},
	)

	KeeperDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holyledger_keeper_duration_seconds",
			Help:    "Duration of keeper job runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"job"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holyledger_notifications_total",
			Help: "Total number of notification sends",
		},
		[]string{"status"},
	)
)
