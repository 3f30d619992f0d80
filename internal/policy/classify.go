package policy

import "strings"

// Badge is the display-only triage status derived from a record.
// It is cosmetic, never an enforcement decision.
type Badge string

const (
	BadgeHighRisk     Badge = "High Risk Policy"
	BadgeUnidentified Badge = "Unidentified App"
	BadgeActive       Badge = "Active & Enforced"
)

// highRiskPort is the fixed threshold the original dashboard used.
// Carried forward as-is; there is no documented rationale for 10000.
const highRiskPort = 10000

// unidentifiedMark is the substring that flags producers the monitor
// could not attribute to a known executable.
const unidentifiedMark = "Unknown"

// Classify derives the badge for a record. Pure function; rule order
// matters and the first match wins, so a DENY on a high port beats an
// "Unknown" app name.
func Classify(r Record) Badge {
	switch {
	case r.Action == ActionDeny && r.Port > highRiskPort:
		return BadgeHighRisk
	case strings.Contains(r.AppName, unidentifiedMark):
		return BadgeUnidentified
	default:
		return BadgeActive
	}
}
