package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/klicktape/backend/internal/logger"
	"github.com/spf13/cobra"
)

var output string = "text" // "text" or "json"

var rootCmd = &cobra.Command{
	Use:   "klicktape",
	Short: "Klicktape admin CLI - Operate the feed backend",
	Long: `Klicktape admin CLI provides operational access to the feed backend.
Inspect view history and manage the feed page cache directly against
the configured database and Redis.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using system environment variables")
		}
		if err := logger.Initialize("warn", "cli.log"); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(viewsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
