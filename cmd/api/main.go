package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quadvote/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (storage adapters + identity + ledger use cases).
// 3) Serve HTTP until SIGINT/SIGTERM.
//
// @title quadvote API
// @version 1.0
// @description Quadratic-voting ledger: DAOs, proposals and square-root weighted votes.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("quadvote api starting")
	app, err := bootstrap.BuildAPI(ctx)
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("quadvote api stopped with error: %v", err)
	}
}
