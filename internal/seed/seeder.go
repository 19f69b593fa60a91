package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev populates the development database with realistic data:
// users, posts with varied engagement, and view history spread over
// the last two weeks so feed exclusions have something to bite on.
func (s *Seeder) SeedDev() error {
	logger.Log.Info("Creating users...")
	users, err := s.seedUsers(50)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Creating posts...")
	posts, err := s.seedPosts(users, 400)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	logger.Log.Info("Creating view history...")
	if err := s.seedViews(users, posts, 2000); err != nil {
		return fmt.Errorf("failed to seed views: %w", err)
	}

	logger.Log.Info("Seeding complete",
		zap.Int("users", len(users)),
		zap.Int("posts", len(posts)))
	return nil
}

// Clean removes all seeded data, children first
func (s *Seeder) Clean() error {
	if err := s.db.Exec("DELETE FROM post_views").Error; err != nil {
		return fmt.Errorf("failed to clean post_views: %w", err)
	}
	if err := s.db.Exec("DELETE FROM posts").Error; err != nil {
		return fmt.Errorf("failed to clean posts: %w", err)
	}
	if err := s.db.Exec("DELETE FROM users").Error; err != nil {
		return fmt.Errorf("failed to clean users: %w", err)
	}
	return nil
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	// Reuse existing seed users instead of piling on more
	var seedUserCount int64
	s.db.Model(&models.User{}).Where("email LIKE '%@example.com'").Count(&seedUserCount)
	if seedUserCount >= int64(count) {
		var users []models.User
		if err := s.db.Find(&users).Error; err != nil {
			return nil, err
		}
		logger.Log.Info("Found existing users, skipping creation",
			zap.Int("total_users", len(users)))
		return users, nil
	}

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		username := gofakeit.Username()
		email := fmt.Sprintf("%s%d@example.com", username, i)

		var existing models.User
		for s.db.Where("username = ?", username).First(&existing).Error != gorm.ErrRecordNotFound {
			username = gofakeit.Username()
		}

		user := models.User{
			Email:         email,
			Username:      username,
			DisplayName:   gofakeit.Name(),
			Bio:           gofakeit.HipsterSentence(),
			AvatarURL:     fmt.Sprintf("https://cdn.klicktape.dev/avatars/%s.jpg", username),
			EmailVerified: true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}

func (s *Seeder) seedPosts(users []models.User, count int) ([]models.Post, error) {
	posts := make([]models.Post, 0, count)

	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]

		// Skewed engagement: most posts quiet, a handful popular
		likeCount := rand.Intn(8)
		commentCount := rand.Intn(4)
		if rand.Float64() < 0.1 {
			likeCount = 30 + rand.Intn(200)
			commentCount = 10 + rand.Intn(60)
		}

		var tagged models.StringArray
		if rand.Float64() < 0.2 {
			tagged = models.StringArray{users[rand.Intn(len(users))].ID}
		}

		createdAt := time.Now().UTC().Add(-time.Duration(rand.Intn(14*24)) * time.Hour)

		post := models.Post{
			UserID:        author.ID,
			Caption:       gofakeit.Sentence(8),
			ImageURL:      fmt.Sprintf("https://cdn.klicktape.dev/posts/%s.jpg", gofakeit.UUID()),
			TaggedUserIDs: tagged,
			LikeCount:     likeCount,
			CommentCount:  commentCount,
			IsPublic:      rand.Float64() > 0.05,
		}
		if err := s.db.Create(&post).Error; err != nil {
			return nil, err
		}
		if err := s.db.Model(&post).UpdateColumn("created_at", createdAt).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	return posts, nil
}

func (s *Seeder) seedViews(users []models.User, posts []models.Post, count int) error {
	for i := 0; i < count; i++ {
		viewer := users[rand.Intn(len(users))]
		post := posts[rand.Intn(len(posts))]
		if post.UserID == viewer.ID {
			continue
		}

		viewedAt := time.Now().UTC().Add(-time.Duration(rand.Intn(14*24*60)) * time.Minute)

		view := models.PostView{
			ViewerID:   viewer.ID,
			PostID:     post.ID,
			ViewedAt:   viewedAt,
			BucketedAt: viewedAt.Truncate(time.Minute),
		}
		err := s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "viewer_id"},
				{Name: "post_id"},
				{Name: "bucketed_at"},
			},
			DoNothing: true,
		}).Create(&view).Error
		if err != nil {
			return err
		}
	}
	return nil
}
