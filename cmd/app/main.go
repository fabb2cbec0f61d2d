package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/revolis/allpremarkets/internal/di"
	"github.com/revolis/allpremarkets/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	dryRun := flag.Bool("telegram-dry-run", false, "log Telegram messages instead of sending them")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *dryRun {
		cfg.Telegram.DryRun = true
	}

	log.Printf("env=%s rules=%d telegram=%t dry_run=%t", cfg.Environment, len(cfg.Rules), cfg.Telegram.Enabled, cfg.Telegram.DryRun)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg, di.ConfigPath(*configPath))
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
