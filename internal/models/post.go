package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a shared tape with metadata
type Post struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// Content
	Caption  string `gorm:"type:text" json:"caption"`
	ImageURL string `gorm:"not null" json:"image_url"`

	// Tagged users and collaborators (sets of user ids)
	TaggedUserIDs   StringArray `gorm:"type:text[]" json:"tagged_user_ids"`
	CollaboratorIDs StringArray `gorm:"type:text[]" json:"collaborator_ids"`

	// Engagement counters (cached - likes/comments are written elsewhere,
	// the feed path only reads them)
	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`
	ViewCount    int `gorm:"default:0" json:"view_count"`

	IsPublic bool `gorm:"default:true" json:"is_public"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PostView records "viewer V saw post P" collapsed into minute buckets.
// BucketedAt is ViewedAt floored to the bucket interval; the unique index
// on (viewer_id, post_id, bucketed_at) makes duplicate renders within one
// bucket an upsert instead of a new row.
type PostView struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ViewerID string `gorm:"not null;index;uniqueIndex:idx_post_views_bucket" json:"viewer_id"`
	Viewer   User   `gorm:"foreignKey:ViewerID" json:"viewer,omitempty"`
	PostID   string `gorm:"not null;index;uniqueIndex:idx_post_views_bucket" json:"post_id"`
	Post     Post   `gorm:"foreignKey:PostID" json:"post,omitempty"`

	ViewedAt   time.Time `gorm:"not null" json:"viewed_at"`
	BucketedAt time.Time `gorm:"not null;uniqueIndex:idx_post_views_bucket" json:"bucketed_at"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the view table name explicit
func (PostView) TableName() string {
	return "post_views"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (v *PostView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	return nil
}
