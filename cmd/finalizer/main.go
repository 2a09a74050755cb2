// Command finalizer is the DynamoDB Streams Lambda that fills in
// server-computed fields on shop dependents.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/storefront/internal/backend"
	"github.com/jacentio/storefront/internal/config"
	"github.com/jacentio/storefront/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "finalizer:", err)
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stdout)

	client, err := backend.Open(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to open record store", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}

	h := stream.NewHandler(client, cfg.Record(), logger)
	lambda.Start(h.HandleFinalize)
}
