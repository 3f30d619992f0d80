// Package web provides HTTP handlers for the policydeck dashboard and API.
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/ppiankov/policydeck/internal/policy"
)

//go:embed templates/policies.html
var templateFS embed.FS

var policiesTmpl = template.Must(template.ParseFS(templateFS, "templates/policies.html"))

// SnapshotFunc returns the current snapshot.
type SnapshotFunc func() policy.Snapshot

// UIHandler serves the policy dashboard page.
func UIHandler(getSnapshot SnapshotFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()

		var highRisk, unidentified, active int
		rows := make([]policyRow, 0, len(snap.Policies))
		for i := range snap.Policies {
			p := &snap.Policies[i]
			badge := policy.Classify(*p)
			switch badge {
			case policy.BadgeHighRisk:
				highRisk++
			case policy.BadgeUnidentified:
				unidentified++
			default:
				active++
			}
			rows = append(rows, policyRow{
				ID:         p.ID,
				AppName:    p.AppName,
				Protocol:   p.Protocol,
				Port:       p.Port,
				Action:     p.Action,
				Badge:      string(badge),
				BadgeClass: badgeClass(badge),
			})
		}

		data := pageData{
			FetchTime:         snap.At.Format(time.RFC3339),
			Endpoint:          endpoint,
			FetchErr:          snap.FetchErr,
			Policies:          rows,
			HighRiskCount:     highRisk,
			UnidentifiedCount: unidentified,
			ActiveCount:       active,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := policiesTmpl.Execute(w, data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// PoliciesHandler returns the full snapshot as JSON.
func PoliciesHandler(getSnapshot SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HealthzHandler reports liveness. Returns 503 when the last snapshot is
// older than maxAge, which catches a wedged fetch loop.
func HealthzHandler(getSnapshot SnapshotFunc, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := getSnapshot()
		w.Header().Set("Content-Type", "text/plain")
		if snap.At.IsZero() || time.Since(snap.At) > maxAge {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("stale")) //nolint:errcheck // best-effort response
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck // best-effort response
	}
}

type pageData struct {
	FetchTime         string
	Endpoint          string
	FetchErr          string
	Policies          []policyRow
	HighRiskCount     int
	UnidentifiedCount int
	ActiveCount       int
}

type policyRow struct {
	AppName    string
	Protocol   string
	Action     string
	Badge      string
	BadgeClass string
	ID         int
	Port       int
}

func badgeClass(b policy.Badge) string {
	switch b {
	case policy.BadgeHighRisk:
		return "badge-risk"
	case policy.BadgeUnidentified:
		return "badge-unknown"
	default:
		return "badge-active"
	}
}
