package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/klicktape/backend/internal/cache"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the feed page cache",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <viewer-id>",
	Short: "Drop all cached feed pages for a viewer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := connectRedis()
		if err != nil {
			return err
		}
		defer rc.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pattern := fmt.Sprintf("feed:%s:*", args[0])
		keys, err := rc.Keys(ctx, pattern)
		if err != nil {
			return fmt.Errorf("failed to list cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := rc.Del(ctx, keys...); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
		}

		printResult(map[string]interface{}{
			"viewer_id":    args[0],
			"keys_dropped": len(keys),
		}, fmt.Sprintf("Dropped %d cached pages for viewer %s", len(keys), args[0]))
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list [viewer-id]",
	Short: "List cached feed page keys, optionally for one viewer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := connectRedis()
		if err != nil {
			return err
		}
		defer rc.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pattern := "feed:*"
		if len(args) == 1 {
			pattern = fmt.Sprintf("feed:%s:*", args[0])
		}

		keys, err := rc.Keys(ctx, pattern)
		if err != nil {
			return fmt.Errorf("failed to list cache keys: %w", err)
		}

		if output == "json" {
			printResult(map[string]interface{}{"keys": keys}, "")
			return nil
		}
		for _, key := range keys {
			ttl, _ := rc.TTL(ctx, key)
			fmt.Printf("%s\tttl=%s\n", key, ttl)
		}
		fmt.Printf("%d keys\n", len(keys))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cacheListCmd)
}

func connectRedis() (*cache.RedisClient, error) {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	return cache.NewRedisClient(host, port, os.Getenv("REDIS_PASSWORD"))
}

func printResult(data map[string]interface{}, text string) {
	if output == "json" {
		payload, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(payload))
		return
	}
	if text != "" {
		fmt.Println(text)
	}
}
