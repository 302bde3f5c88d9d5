package tree

import (
	"math"
	"strconv"
	"time"

	"github.com/loomworks/loom/pkg/conversation"
)

// ScoreWeights configures the quality scoring heuristic. The formula is
// deliberately not hard-coded: the weighting of the three signals is a
// tunable, and callers load it from configuration.
type ScoreWeights struct {
	// Momentum weights follow-up volume: more turns beyond the fork point
	// without abandonment implies higher perceived usefulness.
	Momentum float64

	// Recency weights how recently the branch saw activity.
	Recency float64

	// Feedback weights explicit user feedback stored in branch metadata.
	Feedback float64
}

// DefaultScoreWeights is the out-of-the-box weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Momentum: 0.4, Recency: 0.3, Feedback: 0.3}
}

// recencyHalfLife is the age at which the recency signal decays to 0.5.
const recencyHalfLife = 24 * time.Hour

// Score computes a branch's quality score in [0, 1] from signals available
// without re-querying the model. Scores rank branches for recommendations
// only; they never drive automatic deletion or merging.
func Score(b *conversation.Branch, messageCount int, now time.Time, w ScoreWeights) float64 {
	own := messageCount - b.ForkPoint
	if own < 0 {
		own = 0
	}
	// Saturating: 0 for an untouched fork, approaching 1 as turns accrue.
	momentum := 1.0 - 1.0/(1.0+float64(own))

	age := now.Sub(b.LastActivity)
	if age < 0 {
		age = 0
	}
	recency := math.Exp2(-age.Hours() / recencyHalfLife.Hours())

	feedback := 0.0
	if v, ok := b.Metadata[conversation.MetaFeedback]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			feedback = clamp01(f)
		}
	} else if v, ok := b.Metadata[conversation.MetaQualityScore]; ok {
		// Fall back to a previously cached score when no explicit feedback
		// exists.
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			feedback = clamp01(f)
		}
	}

	total := w.Momentum + w.Recency + w.Feedback
	if total == 0 {
		return 0
	}
	return (w.Momentum*momentum + w.Recency*recency + w.Feedback*feedback) / total
}

func clamp01(f float64) float64 {
	return math.Min(1, math.Max(0, f))
}
