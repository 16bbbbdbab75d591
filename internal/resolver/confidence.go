package resolver

import (
	"strconv"

	"archmap/internal/model"
)

// MetaConfidence is the relationship metadata key holding the calibrated score.
const MetaConfidence = "confidence"

// Confidence scores how likely a resolved relationship points at the right target. The
// base comes from the relationship kind, the resolution tier moves it, and a reference
// without a source position costs a little. Scores stay within [0.1, 0.99].
func Confidence(kind model.RelationKind, tier string, loc *model.SourceLocation) float64 {
	base := baseConfidence(kind)

	switch tier {
	case TierExact:
		base += 0.2
	case TierUnique:
		base += 0.1
	case TierSameModule:
		// no-op
	case TierFirst:
		base -= 0.2
	default:
		base -= 0.05
	}

	if loc == nil || loc.Line <= 0 {
		base -= 0.05
	}
	return clamp(base, 0.1, 0.99)
}

func baseConfidence(kind model.RelationKind) float64 {
	switch kind {
	case model.RelationContains:
		return 0.8
	case model.RelationInherits, model.RelationImports:
		return 0.75
	case model.RelationInstantiates:
		return 0.72
	case model.RelationCalls:
		return 0.7
	case model.RelationDecorates:
		return 0.65
	default:
		return 0.55
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
