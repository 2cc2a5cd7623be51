package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"flightstream-service/internal/infrastructure/config"
	"flightstream-service/internal/infrastructure/oauth"
	"flightstream-service/pkg/logger"
)

// Fetches one client-credentials token from the provider's token endpoint and
// prints it, to check UPSTREAM_TOKEN_URL, UPSTREAM_CLIENT_ID and UPSTREAM_CLIENT_SECRET.
func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	upstreamOAuth := oauth.NewUpstreamOAuth(cfg.UpstreamTokenURL, cfg.UpstreamClientID, cfg.UpstreamClientSecret, log)
	if upstreamOAuth == nil {
		fmt.Fprintln(os.Stderr, "UPSTREAM_TOKEN_URL and UPSTREAM_CLIENT_ID must be set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := upstreamOAuth.GetTokenSource(ctx).Token()
	if err != nil {
		log.Fatal("Failed to fetch token", "error", err)
	}

	out, err := upstreamOAuth.TokenToJSON(token)
	if err != nil {
		log.Fatal("Failed to encode token", "error", err)
	}
	fmt.Printf("\nAccess Token:\n%s\n\n", out)
}
