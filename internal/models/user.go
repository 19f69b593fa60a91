package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringArray is a custom type for PostgreSQL text[] that implements Scanner and Valuer
type StringArray []string

// Scan implements the sql.Scanner interface for reading from database
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	// PostgreSQL returns text[] as a string like "{value1,value2,value3}"
	str, ok := value.(string)
	if !ok {
		if bytes, ok := value.([]byte); ok {
			str = string(bytes)
		} else {
			*a = nil
			return nil
		}
	}

	str = strings.TrimPrefix(str, "{")
	str = strings.TrimSuffix(str, "}")

	if str == "" {
		*a = []string{}
		return nil
	}

	// Split by comma (simple case - doesn't handle quoted values with commas)
	*a = strings.Split(str, ",")
	return nil
}

// Value implements the driver.Valuer interface for writing to database
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	if len(a) == 0 {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}

// User represents a Klicktape account
type User struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `gorm:"not null" json:"display_name"`
	Bio         string `gorm:"type:text" json:"bio"`
	AvatarURL   string `json:"avatar_url"`

	// Account state - flipped by the hosted verification flow, read-only here
	EmailVerified bool `gorm:"default:false" json:"email_verified"`

	// Cached social stats
	FollowerCount  int `gorm:"default:0" json:"follower_count"`
	FollowingCount int `gorm:"default:0" json:"following_count"`
	PostCount      int `gorm:"default:0" json:"post_count"`

	LastActiveAt *time.Time `json:"last_active_at"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hooks for GORM
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

// Helper function for UUID generation
func generateUUID() string {
	return uuid.New().String()
}
