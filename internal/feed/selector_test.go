package feed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.InitializeForTesting()
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *gorm.DB {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}
	password := os.Getenv("POSTGRES_PASSWORD")
	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		dbname = "klicktape_test"
	}

	dsn := "host=" + host + " port=" + port + " user=" + user + " dbname=" + dbname + " sslmode=disable"
	if password != "" {
		dsn += " password=" + password
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Skipf("Skipping selector tests: database not available (%v)", err)
	}

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.PostView{}))

	db.Exec("DELETE FROM post_views")
	db.Exec("DELETE FROM posts")
	db.Exec("DELETE FROM users")

	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{
		Email:       username + "@klicktape.test",
		Username:    username,
		DisplayName: username,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createPostAt(t *testing.T, db *gorm.DB, authorID, caption string, createdAt time.Time) *models.Post {
	post := &models.Post{
		UserID:   authorID,
		Caption:  caption,
		ImageURL: "https://cdn.klicktape.test/" + caption + ".jpg",
		IsPublic: true,
	}
	require.NoError(t, db.Create(post).Error)
	require.NoError(t, db.Model(post).UpdateColumn("created_at", createdAt).Error)
	post.CreatedAt = createdAt
	return post
}

func recordView(t *testing.T, db *gorm.DB, viewerID, postID string, viewedAt time.Time) {
	view := &models.PostView{
		ViewerID:   viewerID,
		PostID:     postID,
		ViewedAt:   viewedAt,
		BucketedAt: viewedAt.Truncate(time.Minute),
	}
	require.NoError(t, db.Create(view).Error)
}

func TestClamp(t *testing.T) {
	s := NewSelector(nil, Options{DefaultLimit: 20, MaxLimit: 50}, nil)

	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"zero limit uses default", 0, 0, 20, 0},
		{"negative limit uses default", -5, 0, 20, 0},
		{"oversized limit clamps to max", 500, 0, 50, 0},
		{"negative offset clamps to zero", 10, -3, 10, 0},
		{"valid values pass through", 30, 40, 30, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := s.clamp(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestRankOrdersByScoreWithRecencyTiebreak(t *testing.T) {
	s := NewSelector(nil, DefaultOptions(), nil)
	now := time.Now().UTC()

	// Same score tier, different ages: newer must win
	older := models.Post{ID: "older", CreatedAt: now.Add(-3 * time.Hour)}
	newer := models.Post{ID: "newer", CreatedAt: now.Add(-2 * time.Hour)}
	// High engagement beats both despite being oldest
	popular := models.Post{ID: "popular", CreatedAt: now.Add(-48 * time.Hour), LikeCount: 100, CommentCount: 40}

	ranked := s.rank([]models.Post{older, popular, newer}, now)
	require.Len(t, ranked, 3)
	assert.Equal(t, "popular", ranked[0].post.ID)
	assert.Equal(t, "newer", ranked[1].post.ID)
	assert.Equal(t, "older", ranked[2].post.ID)
}

func TestSelectFeedEmptyViewerReturnsEmptyPage(t *testing.T) {
	s := NewSelector(nil, DefaultOptions(), nil)

	page, err := s.SelectFeed(context.Background(), Params{ViewerID: ""})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Meta.Count)
	assert.False(t, page.Meta.HasMore)
}

func TestSelectFeedExcludesOwnAndPrivatePosts(t *testing.T) {
	db := setupTestDB(t)
	viewer := createUser(t, db, "viewer")
	author := createUser(t, db, "author")

	now := time.Now().UTC()
	createPostAt(t, db, author.ID, "visible", now.Add(-time.Hour))
	createPostAt(t, db, viewer.ID, "mine", now.Add(-time.Hour))

	private := &models.Post{
		UserID:   author.ID,
		Caption:  "private",
		ImageURL: "https://cdn.klicktape.test/private.jpg",
		IsPublic: false,
	}
	require.NoError(t, db.Create(private).Error)

	s := NewSelector(db, DefaultOptions(), nil)
	page, err := s.SelectFeed(context.Background(), Params{ViewerID: viewer.ID, RespectCooldown: true, ExcludeViewedTwice: true})
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, "visible", page.Items[0].Caption)
	assert.Equal(t, "author", page.Items[0].Author.Username)
}

func TestSelectFeedCooldownSuppressesRecentlyViewed(t *testing.T) {
	db := setupTestDB(t)
	viewer := createUser(t, db, "viewer")
	author := createUser(t, db, "author")

	now := time.Now().UTC()
	seen := createPostAt(t, db, author.ID, "seen-today", now.Add(-2*time.Hour))
	seenLongAgo := createPostAt(t, db, author.ID, "seen-last-week", now.Add(-8*24*time.Hour))
	unseen := createPostAt(t, db, author.ID, "unseen", now.Add(-3*time.Hour))

	recordView(t, db, viewer.ID, seen.ID, now.Add(-time.Hour))
	recordView(t, db, viewer.ID, seenLongAgo.ID, now.Add(-6*24*time.Hour))

	s := NewSelector(db, DefaultOptions(), nil)
	page, err := s.SelectFeed(context.Background(), Params{ViewerID: viewer.ID, RespectCooldown: true})
	require.NoError(t, err)

	captions := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		captions = append(captions, item.Caption)
	}
	assert.NotContains(t, captions, "seen-today")
	assert.Contains(t, captions, "seen-last-week", "views outside the cooldown window do not suppress")
	assert.Contains(t, captions, "unseen")
	assert.Equal(t, unseen.ID, page.Items[0].ID)
}

func TestSelectFeedExcludesViewedTwice(t *testing.T) {
	db := setupTestDB(t)
	viewer := createUser(t, db, "viewer")
	author := createUser(t, db, "author")

	now := time.Now().UTC()
	exhausted := createPostAt(t, db, author.ID, "seen-twice", now.Add(-10*24*time.Hour))
	fresh := createPostAt(t, db, author.ID, "fresh", now.Add(-time.Hour))

	// Two views far outside the cooldown window
	recordView(t, db, viewer.ID, exhausted.ID, now.Add(-9*24*time.Hour))
	recordView(t, db, viewer.ID, exhausted.ID, now.Add(-8*24*time.Hour))

	s := NewSelector(db, DefaultOptions(), nil)
	page, err := s.SelectFeed(context.Background(), Params{ViewerID: viewer.ID, ExcludeViewedTwice: true})
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, fresh.ID, page.Items[0].ID)
}

func TestSelectFeedNewViewerSeesEverything(t *testing.T) {
	db := setupTestDB(t)
	author := createUser(t, db, "author")

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		createPostAt(t, db, author.ID, "post", now.Add(-time.Duration(i+1)*time.Hour))
	}

	s := NewSelector(db, DefaultOptions(), nil)

	// A viewer id with no rows anywhere behaves like a brand new account
	page, err := s.SelectFeed(context.Background(), Params{
		ViewerID:           "2f9b8a4e-0000-4000-8000-000000000001",
		RespectCooldown:    true,
		ExcludeViewedTwice: true,
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
}

func TestSelectFeedPagination(t *testing.T) {
	db := setupTestDB(t)
	viewer := createUser(t, db, "viewer")
	author := createUser(t, db, "author")

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		createPostAt(t, db, author.ID, "post", now.Add(-time.Duration(i+1)*time.Hour))
	}

	s := NewSelector(db, DefaultOptions(), nil)

	first, err := s.SelectFeed(context.Background(), Params{ViewerID: viewer.ID, Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Meta.Count)
	assert.True(t, first.Meta.HasMore)

	last, err := s.SelectFeed(context.Background(), Params{ViewerID: viewer.ID, Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, last.Meta.Count)
	assert.False(t, last.Meta.HasMore)

	// No overlap between pages
	for _, a := range first.Items {
		for _, b := range last.Items {
			assert.NotEqual(t, a.ID, b.ID)
		}
	}
}
