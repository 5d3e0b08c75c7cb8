// Package metrics holds the Prometheus collectors shared by the client.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once
	shared   *Metrics
)

// Metrics groups every collector the client records into
type Metrics struct {
	submitAttempts  *prometheus.CounterVec
	receiptWaits    *prometheus.HistogramVec
	sweeps          prometheus.Counter
	sweepFailures   prometheus.Counter
	discoveryErrors prometheus.Counter
	rpcRejected     *prometheus.CounterVec
	breakerState    prometheus.Gauge
}

// Default returns the process-wide collectors, registering them on first use
func Default() *Metrics {
	initOnce.Do(func() {
		shared = New(prometheus.DefaultRegisterer)
	})
	return shared
}

// New builds a collector set registered on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arenakit_submit_attempts_total",
			Help: "Transaction submission attempts by outcome.",
		}, []string{"outcome"}),
		receiptWaits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arenakit_receipt_wait_seconds",
			Help:    "Time spent waiting for transaction receipts by result.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 120, 180},
		}, []string{"result"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arenakit_claim_sweeps_total",
			Help: "Completed claims sweeps.",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arenakit_claim_sweep_battle_failures_total",
			Help: "Battles whose claim sources failed during a sweep.",
		}),
		discoveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arenakit_agent_discovery_candidate_errors_total",
			Help: "Agent candidates skipped because the owner lookup failed.",
		}),
		rpcRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arenakit_rpc_rejected_total",
			Help: "RPC calls rejected by the circuit breaker by method.",
		}, []string{"method"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arenakit_rpc_breaker_state",
			Help: "RPC circuit breaker state (0 closed, 1 open, 2 half-open).",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.submitAttempts,
			m.receiptWaits,
			m.sweeps,
			m.sweepFailures,
			m.discoveryErrors,
			m.rpcRejected,
			m.breakerState,
		)
	}
	return m
}

func (m *Metrics) SubmitAttempt(outcome string) {
	if m == nil {
		return
	}
	m.submitAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReceiptWait(result string, seconds float64) {
	if m == nil {
		return
	}
	m.receiptWaits.WithLabelValues(result).Observe(seconds)
}

func (m *Metrics) Sweep(failedBattles int) {
	if m == nil {
		return
	}
	m.sweeps.Inc()
	m.sweepFailures.Add(float64(failedBattles))
}

func (m *Metrics) DiscoveryCandidateError() {
	if m == nil {
		return
	}
	m.discoveryErrors.Inc()
}

func (m *Metrics) RPCRejected(method string) {
	if m == nil {
		return
	}
	m.rpcRejected.WithLabelValues(method).Inc()
}

func (m *Metrics) BreakerState(state int) {
	if m == nil {
		return
	}
	m.breakerState.Set(float64(state))
}
