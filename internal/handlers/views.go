package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klicktape/backend/internal/dto"
	apierrors "github.com/klicktape/backend/internal/errors"
	"github.com/klicktape/backend/internal/logger"
	"go.uber.org/zap"
)

// RecordView marks a post as viewed by the authenticated user.
// Repeated calls within the same minute collapse into one view row,
// so retries and double-fires are safe.
func (h *Handlers) RecordView(c *gin.Context) {
	viewerID := c.GetString("user_id")

	var req dto.RecordViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.ValidationError("post_id", "a valid post id is required"))
		return
	}

	if err := h.tracker.RecordView(c.Request.Context(), viewerID, req.PostID, time.Now()); err != nil {
		logger.Log.Error("Failed to record view",
			logger.WithViewerID(viewerID),
			logger.WithPostID(req.PostID),
			zap.Error(err))
		respondError(c, apierrors.InternalError("failed to record view"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"recorded": true})
}
