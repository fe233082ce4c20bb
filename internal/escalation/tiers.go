// Package escalation turns fired triggers into outbound notifications and
// drives the repeat-until-confirmed loop for priority reminders.
package escalation

import (
	"time"

	"github.com/chiahung/remibot/internal/config"
	"github.com/chiahung/remibot/internal/dispatch"
)

// Tier is one row of the priority escalation table.
type Tier struct {
	Interval time.Duration
	Repeats  int
	Severity dispatch.Severity
}

// Tiers maps priority level (1..3) to its escalation behavior. Priority 0
// reminders never escalate and have no entry.
type Tiers map[int]Tier

// TiersFromConfig builds the tier table. The severity of each level is
// fixed; only cadence and repeat count are configurable.
func TiersFromConfig(cfg config.EscalationConfig) Tiers {
	return Tiers{
		1: {Interval: minutes(cfg.Tier1.IntervalMinutes, 60), Repeats: repeats(cfg.Tier1.Repeats, 1), Severity: dispatch.SeverityInfo},
		2: {Interval: minutes(cfg.Tier2.IntervalMinutes, 15), Repeats: repeats(cfg.Tier2.Repeats, 2), Severity: dispatch.SeverityWarning},
		3: {Interval: minutes(cfg.Tier3.IntervalMinutes, 5), Repeats: repeats(cfg.Tier3.Repeats, 3), Severity: dispatch.SeverityCritical},
	}
}

// Lookup returns the tier for a priority level, clamping out-of-range
// levels into the closed 1..3 table.
func (t Tiers) Lookup(priority int) (Tier, bool) {
	if priority <= 0 {
		return Tier{}, false
	}
	if priority > 3 {
		priority = 3
	}
	tier, ok := t[priority]
	return tier, ok
}

func minutes(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Minute
}

func repeats(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
