package metrics

import (
	"sync"
	"testing"
)

func TestCounters(t *testing.T) {
	tests := []struct {
		name string
		inc  func()
		get  func(Metrics) uint64
	}{
		{"ScoresComputed", ScoreComputed, func(m Metrics) uint64 { return m.ScoresComputed }},
		{"OracleUsed", OracleUse, func(m Metrics) uint64 { return m.OracleUsed }},
		{"OracleFallbacks", OracleFallback, func(m Metrics) uint64 { return m.OracleFallbacks }},
		{"EligibilityRejections", EligibilityRejected, func(m Metrics) uint64 { return m.EligibilityRejections }},
		{"AggregationFailures", AggregationFailed, func(m Metrics) uint64 { return m.AggregationFailures }},
		{"ClaimsSucceeded", ClaimSucceeded, func(m Metrics) uint64 { return m.ClaimsSucceeded }},
		{"ClaimsRejected", ClaimRejected, func(m Metrics) uint64 { return m.ClaimsRejected }},
		{"WebhooksReceived", WebhookReceived, func(m Metrics) uint64 { return m.WebhooksReceived }},
		{"WebhooksProcessed", WebhookProcessed, func(m Metrics) uint64 { return m.WebhooksProcessed }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Reset()

			tt.inc()
			if got := tt.get(Get()); got != 1 {
				t.Errorf("expected %s=1, got %d", tt.name, got)
			}
		})
	}
}

func TestReset(t *testing.T) {
	ScoreComputed()
	OracleFallback()
	ClaimSucceeded()
	WebhookReceived()

	Reset()

	if m := Get(); m != (Metrics{}) {
		t.Errorf("expected all counters zero after reset, got %+v", m)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	Reset()

	var wg sync.WaitGroup
	iterations := 1000

	for i := 0; i < iterations; i++ {
		wg.Add(3)
		go func() {
			ClaimSucceeded()
			wg.Done()
		}()
		go func() {
			ClaimRejected()
			wg.Done()
		}()
		go func() {
			ScoreComputed()
			wg.Done()
		}()
	}

	wg.Wait()
	m := Get()

	if m.ClaimsSucceeded != uint64(iterations) {
		t.Errorf("expected ClaimsSucceeded=%d, got %d", iterations, m.ClaimsSucceeded)
	}
	if m.ClaimsRejected != uint64(iterations) {
		t.Errorf("expected ClaimsRejected=%d, got %d", iterations, m.ClaimsRejected)
	}
	if m.ScoresComputed != uint64(iterations) {
		t.Errorf("expected ScoresComputed=%d, got %d", iterations, m.ScoresComputed)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	Reset()

	ClaimSucceeded()
	snapshot := Get()

	ClaimSucceeded()

	if snapshot.ClaimsSucceeded != 1 {
		t.Errorf("snapshot should be immutable, expected 1, got %d", snapshot.ClaimsSucceeded)
	}

	current := Get()
	if current.ClaimsSucceeded != 2 {
		t.Errorf("current should be 2, got %d", current.ClaimsSucceeded)
	}
}
