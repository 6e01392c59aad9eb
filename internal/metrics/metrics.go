package metrics

import (
	"sync/atomic"
)

// Metrics tracks operational metrics.
type Metrics struct {
	ScoresComputed        uint64 `json:"scores_computed"`
	OracleUsed            uint64 `json:"oracle_used"`
	OracleFallbacks       uint64 `json:"oracle_fallbacks"`
	EligibilityRejections uint64 `json:"eligibility_rejections"`
	AggregationFailures   uint64 `json:"aggregation_failures"`
	ClaimsSucceeded       uint64 `json:"claims_succeeded"`
	ClaimsRejected        uint64 `json:"claims_rejected"`
	WebhooksReceived      uint64 `json:"webhooks_received"`
	WebhooksProcessed     uint64 `json:"webhooks_processed"`
}

var global = &Metrics{}

// ScoreComputed increments the count of completed scoring runs.
func ScoreComputed() { atomic.AddUint64(&global.ScoresComputed, 1) }

// OracleUse increments the count of analyses taken from the oracle.
func OracleUse() { atomic.AddUint64(&global.OracleUsed, 1) }

// OracleFallback increments the count of oracle failures answered locally.
func OracleFallback() { atomic.AddUint64(&global.OracleFallbacks, 1) }

// EligibilityRejected increments the count of requests failing eligibility.
func EligibilityRejected() { atomic.AddUint64(&global.EligibilityRejections, 1) }

// AggregationFailed increments the count of failed mandatory fetches.
func AggregationFailed() { atomic.AddUint64(&global.AggregationFailures, 1) }

// ClaimSucceeded increments the count of recorded payouts.
func ClaimSucceeded() { atomic.AddUint64(&global.ClaimsSucceeded, 1) }

// ClaimRejected increments the count of claims refused by the ledger.
func ClaimRejected() { atomic.AddUint64(&global.ClaimsRejected, 1) }

// WebhookReceived increments the count of webhooks received.
func WebhookReceived() { atomic.AddUint64(&global.WebhooksReceived, 1) }

// WebhookProcessed increments the count of webhooks processed.
func WebhookProcessed() { atomic.AddUint64(&global.WebhooksProcessed, 1) }

// counters lists every field so Get and Reset stay in sync.
func counters(m *Metrics) []*uint64 {
	return []*uint64{
		&m.ScoresComputed,
		&m.OracleUsed,
		&m.OracleFallbacks,
		&m.EligibilityRejections,
		&m.AggregationFailures,
		&m.ClaimsSucceeded,
		&m.ClaimsRejected,
		&m.WebhooksReceived,
		&m.WebhooksProcessed,
	}
}

// Get returns a snapshot of the current metrics.
func Get() Metrics {
	var snapshot Metrics
	dst := counters(&snapshot)
	for i, src := range counters(global) {
		*dst[i] = atomic.LoadUint64(src)
	}
	return snapshot
}

// Reset resets all metrics to zero (useful for testing).
func Reset() {
	for _, c := range counters(global) {
		atomic.StoreUint64(c, 0)
	}
}
