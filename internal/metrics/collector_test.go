package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ppiankov/policydeck/internal/policy"
)

func TestUpdate_EmptySnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	snap := policy.Snapshot{At: time.Now()}
	c.Update(snap, 500*time.Millisecond)

	if got := testutil.ToFloat64(c.fetchDuration); got != 0.5 {
		t.Errorf("fetchDuration = %v, want 0.5", got)
	}
	if got := testutil.ToFloat64(c.fetchSuccess); got != 1 {
		t.Errorf("fetch_success = %v, want 1", got)
	}
	for _, badge := range []policy.Badge{policy.BadgeHighRisk, policy.BadgeUnidentified, policy.BadgeActive} {
		if got := testutil.ToFloat64(c.badgeTotal.With(prometheus.Labels{"badge": string(badge)})); got != 0 {
			t.Errorf("badge_total{%s} = %v, want 0", badge, got)
		}
	}
}

func TestUpdate_MixedPolicies(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	snap := policy.Snapshot{
		At: now,
		Policies: []policy.Record{
			{ID: 1, AppName: "Google Chrome", Protocol: "TCP", Port: 443, Action: "ALLOW"},
			{ID: 2, AppName: "Unknown/System Process", Protocol: "UDP", Port: 53, Action: "ALLOW"},
			{ID: 3, AppName: "nc", Protocol: "TCP", Port: 20000, Action: "DENY"},
		},
	}

	c.Update(snap, 2*time.Second)

	if got := testutil.ToFloat64(c.policiesTotal.With(prometheus.Labels{"action": "ALLOW"})); got != 2 {
		t.Errorf("policies_total{ALLOW} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.policiesTotal.With(prometheus.Labels{"action": "DENY"})); got != 1 {
		t.Errorf("policies_total{DENY} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.badgeTotal.With(prometheus.Labels{"badge": string(policy.BadgeHighRisk)})); got != 1 {
		t.Errorf("badge_total{high risk} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.badgeTotal.With(prometheus.Labels{"badge": string(policy.BadgeUnidentified)})); got != 1 {
		t.Errorf("badge_total{unidentified} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.badgeTotal.With(prometheus.Labels{"badge": string(policy.BadgeActive)})); got != 1 {
		t.Errorf("badge_total{active} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.lastFetch); got != float64(now.Unix()) {
		t.Errorf("last_fetch_timestamp = %v, want %v", got, now.Unix())
	}
}

func TestUpdate_FailedFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// A good snapshot, then a failure: counts reset, success drops to 0
	c.Update(policy.Snapshot{
		At:       time.Now(),
		Policies: []policy.Record{{ID: 1, AppName: "x", Protocol: "TCP", Port: 80, Action: "ALLOW"}},
	}, time.Second)

	c.Update(policy.Snapshot{At: time.Now(), FetchErr: "connection refused"}, time.Second)

	if got := testutil.ToFloat64(c.fetchSuccess); got != 0 {
		t.Errorf("fetch_success = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.policiesTotal.With(prometheus.Labels{"action": "ALLOW"})); got != 0 {
		t.Errorf("policies_total{ALLOW} = %v, want 0 after failed fetch", got)
	}
}
