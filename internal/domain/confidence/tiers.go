package confidence

// Tier buckets a confidence score for the auto-apply decision: high
// confidence matches apply automatically, medium and low go to a human
// review queue, none is discarded.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
	TierNone   Tier = "none"
)

// Thresholds holds the tier boundaries. Every score in [0,1] maps to
// exactly one tier: high >= High, medium in [Medium, High),
// low in [Low, Medium), none < Low.
type Thresholds struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
	Low    float64 `yaml:"low"`
}

// DefaultThresholds returns the canonical tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:   0.60,
		Medium: 0.50,
		Low:    0.40,
	}
}

// Tier classifies a confidence score.
func (t Thresholds) Tier(score float64) Tier {
	switch {
	case score >= t.High:
		return TierHigh
	case score >= t.Medium:
		return TierMedium
	case score >= t.Low:
		return TierLow
	default:
		return TierNone
	}
}

// IsHigh reports whether score clears the high-confidence bar.
func (t Thresholds) IsHigh(score float64) bool {
	return score >= t.High
}

// IsMedium reports whether score clears the medium bar (high included;
// a high-confidence score is also good enough wherever medium is).
func (t Thresholds) IsMedium(score float64) bool {
	return score >= t.Medium
}
