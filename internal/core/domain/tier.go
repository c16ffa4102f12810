package domain

import "fmt"

const (
	// Ratios strictly above these thresholds move to the next, more expensive, tier.
	HighTierThreshold   = 60.0
	MediumTierThreshold = 40.0
)

type TierLevel int

const (
	TierLow TierLevel = iota
	TierMedium
	TierHigh
)

func (l TierLevel) String() string {
	switch l {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// Tier is the fee policy applied to channels falling in a liquidity range.
type Tier struct {
	FeeRatePpm  uint32
	BaseFeeMsat int64
}

// Tiers maps channel liquidity to fees. A channel holding most of its
// capacity locally has outbound liquidity to sell and gets the high tier,
// a depleted one gets the low tier to attract traffic towards it.
type Tiers struct {
	Low    Tier
	Medium Tier
	High   Tier
}

// Level returns the tier level for the given liquidity ratio (percentage).
// Boundary values belong to the cheaper tier.
func (t Tiers) Level(ratio float64) TierLevel {
	if ratio > HighTierThreshold {
		return TierHigh
	}
	if ratio > MediumTierThreshold {
		return TierMedium
	}
	return TierLow
}

func (t Tiers) Get(level TierLevel) Tier {
	switch level {
	case TierHigh:
		return t.High
	case TierMedium:
		return t.Medium
	default:
		return t.Low
	}
}

func (t Tiers) Select(ratio float64) Tier {
	return t.Get(t.Level(ratio))
}
