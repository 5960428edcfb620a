package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"pulse/internal/app"
	"pulse/internal/config"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file, using environment")
	} else {
		log.Println("[config] loaded .env")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Printf("[config] %v", err)
		os.Exit(2)
	}

	if err := app.RunDesktop(cfg); err != nil {
		log.Printf("pulse: %v", err)
		os.Exit(1)
	}
}
