// Package policy defines the policy record shape shared by the viewer and
// the push client, plus the cosmetic badge classification.
package policy

import "time"

// Action values observed from the service. Not enforced client-side; the
// backend owns validation.
const (
	ActionAllow = "ALLOW"
	ActionDeny  = "DENY"
)

// Record is a single application network policy as the service returns it.
// The service assigns ID on create; clients never mutate records.
type Record struct {
	ID       int    `json:"id"`
	AppName  string `json:"app_name"`
	Protocol string `json:"protocol"` // TCP, UDP, ICMP, ...
	Port     int    `json:"port"`     // 0 when the protocol has no port concept
	Action   string `json:"action"`
}

// Snapshot is a point-in-time read of the full policy collection.
// Order is the service's order; no client-side sort.
type Snapshot struct {
	At       time.Time `json:"at"`
	Policies []Record  `json:"policies"`
	FetchErr string    `json:"fetchError,omitempty"`
}
