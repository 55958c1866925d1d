// Package main is the entry point for the audio extraction service.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"audio-extract-go/internal/app"
	"audio-extract-go/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Create and initialize application
	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	// Run the server
	runErr := application.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	if runErr != nil {
		log.Printf("server error: %v", runErr)
		os.Exit(1)
	}
}
