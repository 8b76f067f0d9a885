package domain

// Tier is the severity bucket of a final score.
type Tier int

const (
	TierGreen Tier = iota
	TierYellow
	TierRed
	TierFlashingRed
)

// Tiers lists every tier in ascending severity.
var Tiers = []Tier{TierGreen, TierYellow, TierRed, TierFlashingRed}

// ClassifyTier maps a score to its tier. Upper bounds are inclusive.
func ClassifyTier(score int) Tier {
	switch {
	case score <= 17:
		return TierGreen
	case score <= 34:
		return TierYellow
	case score <= 52:
		return TierRed
	default:
		return TierFlashingRed
	}
}

// Key is the stable identifier used by catalogs and asset lookup.
func (t Tier) Key() string {
	switch t {
	case TierGreen:
		return "green"
	case TierYellow:
		return "yellow"
	case TierRed:
		return "red"
	case TierFlashingRed:
		return "flashing_red"
	default:
		return "unknown"
	}
}

func (t Tier) String() string {
	return t.Key()
}
