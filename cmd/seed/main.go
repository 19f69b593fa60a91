package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/klicktape/backend/internal/database"
	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/seed"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := logger.Initialize("info", "seed.log"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev":
		seedDev()
	case "clean":
		cleanSeed()
	default:
		fmt.Println("Usage: seed [dev|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}
}

func seedDev() {
	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	seeder := seed.NewSeeder(database.DB)
	if err := seeder.SeedDev(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Development database seeded")
}

func cleanSeed() {
	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	seeder := seed.NewSeeder(database.DB)
	if err := seeder.Clean(); err != nil {
		log.Fatalf("Clean failed: %v", err)
	}

	log.Println("Seed data removed")
}
