// Package metrics provides Prometheus instrumentation for policydeck.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/policydeck/internal/policy"
)

// Collector translates a snapshot into Prometheus gauge values.
type Collector struct {
	policiesTotal *prometheus.GaugeVec
	badgeTotal    *prometheus.GaugeVec
	fetchSuccess  prometheus.Gauge
	fetchDuration prometheus.Gauge
	lastFetch     prometheus.Gauge
	mu            sync.Mutex
}

// NewCollector creates and registers metrics on the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		policiesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "policydeck",
			Name:      "policies_total",
			Help:      "Number of policies in the last snapshot by action.",
		}, []string{"action"}),

		badgeTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "policydeck",
			Name:      "badge_total",
			Help:      "Number of policies in the last snapshot by display badge.",
		}, []string{"badge"}),

		fetchSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "policydeck",
			Name:      "fetch_success",
			Help:      "Whether the last fetch succeeded (1=ok, 0=failed).",
		}),

		fetchDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "policydeck",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of the last policy fetch in seconds.",
		}),

		lastFetch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "policydeck",
			Name:      "last_fetch_timestamp",
			Help:      "Unix timestamp of the last completed fetch.",
		}),
	}

	reg.MustRegister(c.policiesTotal)
	reg.MustRegister(c.badgeTotal)
	reg.MustRegister(c.fetchSuccess)
	reg.MustRegister(c.fetchDuration)
	reg.MustRegister(c.lastFetch)

	return c
}

// Update replaces all metric values from the given snapshot.
func (c *Collector) Update(snap policy.Snapshot, fetchDuration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.policiesTotal.Reset()
	c.badgeTotal.Reset()

	c.fetchDuration.Set(fetchDuration.Seconds())
	c.lastFetch.Set(float64(snap.At.Unix()))

	if snap.FetchErr != "" {
		c.fetchSuccess.Set(0)
		return
	}
	c.fetchSuccess.Set(1)

	actions := map[string]int{}
	badges := map[policy.Badge]int{
		policy.BadgeHighRisk:     0,
		policy.BadgeUnidentified: 0,
		policy.BadgeActive:       0,
	}
	for i := range snap.Policies {
		actions[snap.Policies[i].Action]++
		badges[policy.Classify(snap.Policies[i])]++
	}

	for action, count := range actions {
		c.policiesTotal.With(prometheus.Labels{"action": action}).Set(float64(count))
	}
	for badge, count := range badges {
		c.badgeTotal.With(prometheus.Labels{"badge": string(badge)}).Set(float64(count))
	}
}
