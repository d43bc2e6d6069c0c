package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the ledger's Prometheus collectors. Counters are labeled
// sparsely; high-cardinality attributes (addresses, stake ids) stay in the
// event log, not here.
type Metrics struct {
	PurchasesCompleted *prometheus.CounterVec
	PurchasesSkipped   *prometheus.CounterVec
	UnitsSold          prometheus.Gauge
	SaleStage          prometheus.Gauge

	CommissionsPaid    *prometheus.CounterVec
	CommissionsSkipped *prometheus.CounterVec

	StakesOpened prometheus.Counter
	StakesClosed prometheus.Counter
	RewardsPaid  prometheus.Counter
	PoolBalance  prometheus.Gauge
	TotalStaked  prometheus.Gauge

	RPCRequests *prometheus.CounterVec
	RPCErrors   *prometheus.CounterVec
}

// New registers the collectors on the supplied registry. Passing nil uses
// the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		PurchasesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helios",
			Subsystem: "sale",
			Name:      "purchases_completed_total",
			Help:      "Completed purchases by payment currency.",
		}, []string{"currency"}),
		PurchasesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helios",
			Subsystem: "sale",
			Name:      "purchases_skipped_total",
			Help:      "Passive-receipt purchases skipped, by reason.",
		}, []string{"reason"}),
		UnitsSold: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "helios",
			Subsystem: "sale",
			Name:      "units_sold",
			Help:      "Cumulative HLS units sold, in whole units.",
		}),
		SaleStage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "helios",
			Subsystem: "sale",
			Name:      "active_stage",
			Help:      "Current price ladder stage cursor.",
		}),
		CommissionsPaid: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helios",
			Subsystem: "affiliate",
			Name:      "commissions_paid_total",
			Help:      "Commission payouts by currency.",
		}, []string{"currency"}),
		CommissionsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helios",
			Subsystem: "affiliate",
			Name:      "commissions_skipped_total",
			Help:      "Commission payouts skipped, by reason.",
		}, []string{"reason"}),
		StakesOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "helios",
			Subsystem: "staking",
			Name:      "stakes_opened_total",
			Help:      "Stakes opened.",
		}),
		StakesClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "helios",
			Subsystem: "staking",
			Name:      "stakes_closed_total",
			Help:      "Stakes withdrawn.",
		}),
		RewardsPaid: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "helios",
			Subsystem: "staking",
			Name:      "reward_draws_total",
			Help:      "Reward pool disbursements.",
		}),
		PoolBalance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "helios",
			Subsystem: "staking",
			Name:      "reward_pool_units",
			Help:      "Reward pool balance, in whole units.",
		}),
		TotalStaked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "helios",
			Subsystem: "staking",
			Name:      "total_staked_units",
			Help:      "Principal under custody, in whole units.",
		}),
		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helios",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests by method.",
		}, []string{"method"}),
		RPCErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helios",
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "JSON-RPC error responses by code.",
		}, []string{"code"}),
	}
}
