package feed

import (
	"time"

	"github.com/klicktape/backend/internal/models"
)

// Scorer assigns a ranking score to a candidate post. The concrete weighting
// is a tunable policy, not part of the feed contract: swapping the scorer
// never changes which posts are eligible, only their order.
type Scorer interface {
	Score(post *models.Post, now time.Time) float64
}

// ScorerFunc adapts a plain function to the Scorer interface
type ScorerFunc func(post *models.Post, now time.Time) float64

func (f ScorerFunc) Score(post *models.Post, now time.Time) float64 {
	return f(post, now)
}

// engagementRecencyScorer is the default policy: a base score multiplied by
// recency and engagement boosts. Fresh posts float, week-old posts decay,
// and well-liked or discussed posts get a nudge.
type engagementRecencyScorer struct{}

// DefaultScorer returns the recency-weighted engagement policy
func DefaultScorer() Scorer {
	return engagementRecencyScorer{}
}

func (engagementRecencyScorer) Score(post *models.Post, now time.Time) float64 {
	score := 1.0

	age := now.Sub(post.CreatedAt)
	switch {
	case age < time.Hour:
		score *= 1.5
	case age < 6*time.Hour:
		score *= 1.3
	case age < 24*time.Hour:
		score *= 1.1
	case age > 7*24*time.Hour:
		score *= 0.8
	}

	switch {
	case post.LikeCount > 50:
		score *= 1.3
	case post.LikeCount > 20:
		score *= 1.2
	case post.LikeCount > 5:
		score *= 1.1
	}

	// Comments signal more engagement than likes
	switch {
	case post.CommentCount > 25:
		score *= 1.3
	case post.CommentCount > 10:
		score *= 1.2
	case post.CommentCount > 2:
		score *= 1.1
	}

	return score
}
