package main

import (
	"context"
	"flag"
	"log"

	apiApp "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/app/api"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/config"
)

func main() {
	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatalf("config.Load: %v", err)
	}

	app, err := apiApp.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app.New: %v", err)
	}

	if err := app.Start(ctx); err != nil {
		log.Fatalf("app.Start: %v", err)
	}
}
