package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klicktape/backend/internal/database"
	"github.com/klicktape/backend/internal/dto"
	apierrors "github.com/klicktape/backend/internal/errors"
	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/models"
	"go.uber.org/zap"
)

// CreatePost creates a new post for the authenticated user
func (h *Handlers) CreatePost(c *gin.Context) {
	userID := c.GetString("user_id")

	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.BadRequest(err.Error()))
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	post := models.Post{
		UserID:          userID,
		Caption:         req.Caption,
		ImageURL:        req.ImageURL,
		TaggedUserIDs:   req.TaggedUserIDs,
		CollaboratorIDs: req.CollaboratorIDs,
		IsPublic:        isPublic,
	}

	if err := database.DB.WithContext(c.Request.Context()).Create(&post).Error; err != nil {
		logger.Log.Error("Failed to create post",
			logger.WithViewerID(userID),
			zap.Error(err))
		respondError(c, apierrors.InternalError("failed to create post"))
		return
	}

	// The author's cached pages are stale the moment they post
	if err := h.pageCache.InvalidateViewer(c.Request.Context(), userID); err != nil {
		logger.Log.Warn("Failed to invalidate feed cache after post",
			logger.WithViewerID(userID),
			zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// GetPost returns a single post by id
func (h *Handlers) GetPost(c *gin.Context) {
	postID := c.Param("id")

	var post models.Post
	err := database.DB.WithContext(c.Request.Context()).
		Preload("User").
		Where("id = ?", postID).
		First(&post).Error
	if err != nil {
		respondError(c, apierrors.NotFound("post"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}
