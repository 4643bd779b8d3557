package monitor

import "github.com/prometheus/client_golang/prometheus"

// 业务指标: 交易序列与签名流水
var (
	SequencesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gas_station_sequences_created_total",
			Help: "Transaction sequences created, by foreign chain.",
		},
		[]string{"chain_id"},
	)

	SignaturesIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gas_station_signatures_issued_total",
			Help: "Signatures successfully produced, by step kind.",
		},
		[]string{"chain_id", "kind"}, // kind: paymaster / user
	)

	SigningFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gas_station_signing_failures_total",
			Help: "External signing failures (rolled back, retryable).",
		},
		[]string{"chain_id"},
	)

	SequencesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gas_station_sequences_completed_total",
			Help: "Fully signed transaction sequences.",
		},
		[]string{"chain_id"},
	)
)

// InitBusinessMetrics 注册业务指标
func InitBusinessMetrics() {
	prometheus.MustRegister(SequencesCreated)
	prometheus.MustRegister(SignaturesIssued)
	prometheus.MustRegister(SigningFailures)
	prometheus.MustRegister(SequencesCompleted)
}
