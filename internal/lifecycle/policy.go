package lifecycle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Acceptance policy modes.
const (
	// PolicyAnyImproved accepts when at least one error measure improved,
	// bounded by MaxDegradationPct on RMSE. Deliberately permissive: a
	// candidate strictly worse on one axis can still be accepted.
	PolicyAnyImproved = "any_improved"
	// PolicyAllImproved requires both measures to improve.
	PolicyAllImproved = "all_improved"
	// PolicyMaxDegradation accepts anything whose RMSE did not degrade by
	// more than MaxDegradationPct.
	PolicyMaxDegradation = "max_degradation"
)

// Policy decides whether a candidate replaces production given the held-out
// comparison.
type Policy struct {
	Mode string `yaml:"mode"`
	// MaxDegradationPct is how much worse candidate RMSE may be, in
	// percent, before the candidate is rejected outright.
	MaxDegradationPct float64 `yaml:"max_degradation_pct"`
}

func DefaultPolicy() Policy {
	return Policy{Mode: PolicyAnyImproved, MaxDegradationPct: 10}
}

// LoadPolicy reads a policy from a YAML file. Missing fields fall back to
// the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return DefaultPolicy(), fmt.Errorf("parse policy file: %w", err)
	}
	if p.Mode == "" {
		p.Mode = PolicyAnyImproved
	}
	if p.MaxDegradationPct <= 0 {
		p.MaxDegradationPct = 10
	}
	return p, nil
}

// Decide returns the accept decision and a human-readable reason.
func (p Policy) Decide(cmp Comparison) (bool, string) {
	rmseDegradation := -cmp.RMSEImprovementPct
	switch p.Mode {
	case PolicyAllImproved:
		if cmp.RMSEImprovementPct > 0 && cmp.MAEImprovementPct > 0 {
			return true, "both RMSE and MAE improved"
		}
		return false, "policy requires both RMSE and MAE to improve"
	case PolicyMaxDegradation:
		if rmseDegradation > p.MaxDegradationPct {
			return false, fmt.Sprintf("RMSE degraded %.2f%%, above the %.2f%% limit", rmseDegradation, p.MaxDegradationPct)
		}
		return true, "RMSE within the allowed degradation limit"
	default: // PolicyAnyImproved
		if rmseDegradation > p.MaxDegradationPct {
			return false, fmt.Sprintf("RMSE degraded %.2f%%, above the %.2f%% limit", rmseDegradation, p.MaxDegradationPct)
		}
		if cmp.RMSEImprovementPct > 0 || cmp.MAEImprovementPct > 0 {
			return true, "at least one error measure improved"
		}
		return false, "neither RMSE nor MAE improved"
	}
}
