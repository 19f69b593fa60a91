package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/klicktape/backend/internal/errors"
	"github.com/klicktape/backend/internal/feed"
	"github.com/klicktape/backend/internal/logger"
	"go.uber.org/zap"
)

// GetFeed returns a personalized, ranked page of posts for the
// authenticated viewer. Pages are served from the Redis cache when a
// fresh copy exists.
func (h *Handlers) GetFeed(c *gin.Context) {
	viewerID := c.GetString("user_id")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	params := feed.Params{
		ViewerID:           viewerID,
		SessionID:          c.Query("session_id"),
		Limit:              limit,
		Offset:             offset,
		ExcludeViewedTwice: c.DefaultQuery("exclude_viewed_twice", "true") != "false",
		RespectCooldown:    c.DefaultQuery("respect_cooldown", "true") != "false",
	}

	// fresh=true drops the viewer's cached pages first (pull-to-refresh);
	// the rebuilt page still lands in the cache for the next request.
	if c.Query("fresh") == "true" {
		if invErr := h.pageCache.InvalidateViewer(c.Request.Context(), viewerID); invErr != nil {
			logger.Log.Warn("Failed to invalidate feed cache on refresh",
				logger.WithViewerID(viewerID),
				zap.Error(invErr))
		}
	}

	page, cached, err := h.pageCache.GetPage(c.Request.Context(), params)
	if err != nil {
		logger.Log.Error("Failed to build feed page",
			logger.WithViewerID(viewerID),
			zap.Error(err))
		respondError(c, apierrors.InternalError("failed to load feed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":  page.Items,
		"meta":   page.Meta,
		"cached": cached,
	})
}
