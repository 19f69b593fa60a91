package dto

import (
	"github.com/klicktape/backend/internal/models"
)

// AuthorSummary is the denormalized author representation embedded in feed
// items so clients don't need a second round trip for user data.
type AuthorSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// ToAuthorSummary converts models.User to AuthorSummary
func ToAuthorSummary(user *models.User) AuthorSummary {
	if user == nil {
		return AuthorSummary{}
	}
	return AuthorSummary{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	}
}

// CreatePostRequest is the payload for publishing a new post
type CreatePostRequest struct {
	Caption         string   `json:"caption" binding:"max=2200"`
	ImageURL        string   `json:"image_url" binding:"required,url"`
	TaggedUserIDs   []string `json:"tagged_user_ids"`
	CollaboratorIDs []string `json:"collaborator_ids"`
	IsPublic        *bool    `json:"is_public"`
}

// RecordViewRequest is the payload for recording a post render
type RecordViewRequest struct {
	PostID string `json:"post_id" binding:"required,uuid"`
}
