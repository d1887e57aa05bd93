package main

import (
	"context"
	"flag"
	"log"

	workerApp "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/app/worker"
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

	workerApp.Run(ctx, cfg)
}
