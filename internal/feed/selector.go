package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/klicktape/backend/internal/dto"
	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/metrics"
	"github.com/klicktape/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Params are the arguments of one feed page request
type Params struct {
	ViewerID           string
	SessionID          string
	Limit              int
	Offset             int
	ExcludeViewedTwice bool
	RespectCooldown    bool
}

// Options hold the selector tunables
type Options struct {
	CooldownWindow time.Duration // posts viewed within this window are suppressed
	DefaultLimit   int
	MaxLimit       int
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		CooldownWindow: 24 * time.Hour,
		DefaultLimit:   20,
		MaxLimit:       50,
	}
}

// Item is a single feed entry with enough denormalized fields that the
// client never needs a second round trip.
type Item struct {
	ID              string            `json:"id"`
	Caption         string            `json:"caption"`
	ImageURL        string            `json:"image_url"`
	TaggedUserIDs   []string          `json:"tagged_user_ids,omitempty"`
	CollaboratorIDs []string          `json:"collaborator_ids,omitempty"`
	LikeCount       int               `json:"like_count"`
	CommentCount    int               `json:"comment_count"`
	ViewCount       int               `json:"view_count"`
	Score           float64           `json:"score"`
	CreatedAt       time.Time         `json:"created_at"`
	Author          dto.AuthorSummary `json:"author"`
}

// Page is one feed page
type Page struct {
	Items []Item `json:"items"`
	Meta  Meta   `json:"meta"`
}

// Meta contains pagination metadata for a page
type Meta struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}

// Selector builds ranked, cooldown-respecting feed pages
type Selector struct {
	db     *gorm.DB
	opts   Options
	scorer Scorer
}

// NewSelector creates a feed selector. A nil scorer falls back to the
// default recency-weighted engagement policy.
func NewSelector(db *gorm.DB, opts Options, scorer Scorer) *Selector {
	if opts.CooldownWindow <= 0 {
		opts.CooldownWindow = DefaultOptions().CooldownWindow
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultOptions().DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultOptions().MaxLimit
	}
	if scorer == nil {
		scorer = DefaultScorer()
	}
	return &Selector{db: db, opts: opts, scorer: scorer}
}

// SelectFeed returns one ranked page of posts for the viewer.
//
// Candidates are public posts not authored by the viewer. With
// RespectCooldown, posts the viewer saw within the cooldown window are
// removed; with ExcludeViewedTwice, posts seen twice or more are removed
// regardless of recency. The remainder is ranked by the scorer and sliced
// by offset/limit. A missing viewer id yields an empty page, not an error.
func (s *Selector) SelectFeed(ctx context.Context, p Params) (*Page, error) {
	start := time.Now()

	limit, offset := s.clamp(p.Limit, p.Offset)

	if p.ViewerID == "" {
		return &Page{Items: []Item{}, Meta: Meta{Limit: limit, Offset: offset}}, nil
	}

	candidates, err := s.fetchCandidates(ctx, p, limit, offset)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ranked := s.rank(candidates, now)

	// Slice the requested window
	startIdx := offset
	if startIdx > len(ranked) {
		startIdx = len(ranked)
	}
	endIdx := startIdx + limit
	if endIdx > len(ranked) {
		endIdx = len(ranked)
	}
	page := ranked[startIdx:endIdx]

	items := make([]Item, 0, len(page))
	for _, sc := range page {
		items = append(items, toItem(sc))
	}

	metrics.RecordFeedGeneration("smart", time.Since(start), len(items))
	logger.Log.Debug("Feed page built",
		logger.WithViewerID(p.ViewerID),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(items)),
		zap.Int("offset", offset),
		zap.Bool("has_more", endIdx < len(ranked)))

	return &Page{
		Items: items,
		Meta: Meta{
			Limit:   limit,
			Offset:  offset,
			Count:   len(items),
			HasMore: endIdx < len(ranked),
		},
	}, nil
}

// clamp normalizes limit and offset to safe values
func (s *Selector) clamp(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// fetchCandidates loads the filtered candidate window from the database.
// Filtering happens in SQL; ranking happens in Go so the scoring policy
// stays swappable without touching the query.
func (s *Selector) fetchCandidates(ctx context.Context, p Params, limit, offset int) ([]models.Post, error) {
	// Fetch more than one page so ranking has room to reorder; bounded so a
	// deep offset can't turn into a full table scan.
	fetchLimit := (offset + limit) * 3
	if fetchLimit > 600 {
		fetchLimit = 600
	}

	q := s.db.WithContext(ctx).
		Preload("User").
		Where("is_public = ? AND user_id <> ?", true, p.ViewerID)

	if p.RespectCooldown {
		cutoff := time.Now().UTC().Add(-s.opts.CooldownWindow)
		seen := s.db.Model(&models.PostView{}).
			Select("post_id").
			Where("viewer_id = ? AND viewed_at > ?", p.ViewerID, cutoff)
		q = q.Where("id NOT IN (?)", seen)
	}

	if p.ExcludeViewedTwice {
		exhausted := s.db.Model(&models.PostView{}).
			Select("post_id").
			Where("viewer_id = ?", p.ViewerID).
			Group("post_id").
			Having("COUNT(*) >= ?", 2)
		q = q.Where("id NOT IN (?)", exhausted)
	}

	var posts []models.Post
	if err := q.Order("created_at DESC").Limit(fetchLimit).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch feed candidates: %w", err)
	}

	return posts, nil
}

type scored struct {
	post  models.Post
	score float64
}

// rank scores and sorts candidates, highest first. When scores are close,
// more recent posts win the tie.
func (s *Selector) rank(posts []models.Post, now time.Time) []scored {
	ranked := make([]scored, 0, len(posts))
	for i := range posts {
		ranked = append(ranked, scored{
			post:  posts[i],
			score: s.scorer.Score(&posts[i], now),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if abs(ranked[i].score-ranked[j].score) < 0.1 {
			return ranked[i].post.CreatedAt.After(ranked[j].post.CreatedAt)
		}
		return ranked[i].score > ranked[j].score
	})

	return ranked
}

func toItem(sc scored) Item {
	return Item{
		ID:              sc.post.ID,
		Caption:         sc.post.Caption,
		ImageURL:        sc.post.ImageURL,
		TaggedUserIDs:   sc.post.TaggedUserIDs,
		CollaboratorIDs: sc.post.CollaboratorIDs,
		LikeCount:       sc.post.LikeCount,
		CommentCount:    sc.post.CommentCount,
		ViewCount:       sc.post.ViewCount,
		Score:           sc.score,
		CreatedAt:       sc.post.CreatedAt,
		Author:          dto.ToAuthorSummary(&sc.post.User),
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
