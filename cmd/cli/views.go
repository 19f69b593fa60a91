package main

import (
	"context"
	"fmt"
	"time"

	"github.com/klicktape/backend/internal/database"
	"github.com/klicktape/backend/internal/models"
	"github.com/klicktape/backend/internal/views"
	"github.com/spf13/cobra"
)

var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "Inspect view history",
}

var viewsStatsCmd = &cobra.Command{
	Use:   "stats <viewer-id> <post-id>",
	Short: "Show how often and when a viewer saw a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Initialize(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		tracker := views.NewTracker(database.DB, views.DefaultBucket)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		count, err := tracker.CountViews(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		last, err := tracker.LastViewedAt(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		lastStr := "never"
		if last != nil {
			lastStr = last.Format(time.RFC3339)
		}

		printResult(map[string]interface{}{
			"viewer_id":   args[0],
			"post_id":     args[1],
			"view_count":  count,
			"last_viewed": lastStr,
		}, fmt.Sprintf("views=%d last_viewed=%s", count, lastStr))
		return nil
	},
}

var viewsTopCmd = &cobra.Command{
	Use:   "top [limit]",
	Short: "List the most viewed posts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Initialize(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		limit := 10
		if len(args) == 1 {
			fmt.Sscanf(args[0], "%d", &limit)
		}

		var posts []models.Post
		err := database.DB.
			Order("view_count DESC").
			Limit(limit).
			Find(&posts).Error
		if err != nil {
			return err
		}

		for _, post := range posts {
			fmt.Printf("%s\tviews=%d\tlikes=%d\t%s\n", post.ID, post.ViewCount, post.LikeCount, post.Caption)
		}
		return nil
	},
}

func init() {
	viewsCmd.AddCommand(viewsStatsCmd)
	viewsCmd.AddCommand(viewsTopCmd)
}
