package views

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/metrics"
	"github.com/klicktape/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBucket collapses repeat renders of the same post into one view
// per minute. Clients debounce too, but the server enforces it.
const DefaultBucket = time.Minute

// Tracker records and queries per-viewer view history
type Tracker struct {
	db     *gorm.DB
	bucket time.Duration
}

// NewTracker creates a view tracker. bucket <= 0 falls back to DefaultBucket.
func NewTracker(db *gorm.DB, bucket time.Duration) *Tracker {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	return &Tracker{db: db, bucket: bucket}
}

// RecordView appends a view event for (viewer, post), collapsing duplicates
// within the same time bucket. The duplicate case is not an error: the call
// is idempotent per (viewer, post, bucket).
func (t *Tracker) RecordView(ctx context.Context, viewerID, postID string, viewedAt time.Time) error {
	if viewerID == "" || postID == "" {
		return fmt.Errorf("viewer id and post id are required")
	}
	if viewedAt.IsZero() {
		viewedAt = time.Now().UTC()
	}

	view := models.PostView{
		ViewerID:   viewerID,
		PostID:     postID,
		ViewedAt:   viewedAt.UTC(),
		BucketedAt: viewedAt.UTC().Truncate(t.bucket),
	}

	result := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "viewer_id"},
				{Name: "post_id"},
				{Name: "bucketed_at"},
			},
			DoNothing: true,
		}).
		Create(&view)
	if result.Error != nil {
		metrics.RecordViewRecorded("error")
		return fmt.Errorf("failed to record view: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Same bucket already recorded; keep the count honest
		metrics.RecordViewRecorded("duplicate")
		return nil
	}

	metrics.RecordViewRecorded("created")

	// Denormalized counter on the post row. Best effort: the view event is
	// the source of truth for exclusion logic.
	if err := t.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		logger.Log.Warn("Failed to bump post view count",
			logger.WithPostID(postID),
			zap.Error(err))
	}

	return nil
}

// CountViews returns how many distinct view buckets exist for (viewer, post)
func (t *Tracker) CountViews(ctx context.Context, viewerID, postID string) (int64, error) {
	var count int64
	err := t.db.WithContext(ctx).
		Model(&models.PostView{}).
		Where("viewer_id = ? AND post_id = ?", viewerID, postID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count views: %w", err)
	}
	return count, nil
}

// LastViewedAt returns the most recent view time for (viewer, post),
// or nil when the viewer has never seen the post.
func (t *Tracker) LastViewedAt(ctx context.Context, viewerID, postID string) (*time.Time, error) {
	var view models.PostView
	err := t.db.WithContext(ctx).
		Where("viewer_id = ? AND post_id = ?", viewerID, postID).
		Order("viewed_at DESC").
		First(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last view: %w", err)
	}
	return &view.ViewedAt, nil
}
