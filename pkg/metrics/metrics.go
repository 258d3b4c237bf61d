package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OperationsProcessed counts account operations executed by the shard workers
var OperationsProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledgerd_operations_processed_total",
		Help: "Total number of account operations executed by shard workers",
	},
	[]string{"result"},
)

// ShardQueueDepth tracks the number of queued operations per shard
var ShardQueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "ledgerd_shard_queue_depth",
		Help: "Number of operations currently queued on each shard",
	},
	[]string{"shard"},
)

// External withdrawal gateway metrics
var (
	WithdrawalsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_withdrawals_submitted_total",
			Help: "Withdrawal submissions to the external custody service",
		},
		[]string{"outcome"},
	)

	WithdrawalsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_withdrawals_resolved_total",
			Help: "External withdrawals resolved by the reconciliation loop",
		},
		[]string{"status"},
	)

	OutstandingWithdrawals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgerd_withdrawals_outstanding",
			Help: "External withdrawals awaiting a terminal state",
		},
	)
)

func init() {
	prometheus.MustRegister(OperationsProcessed, ShardQueueDepth)
	prometheus.MustRegister(WithdrawalsSubmitted, WithdrawalsResolved, OutstandingWithdrawals)
}
