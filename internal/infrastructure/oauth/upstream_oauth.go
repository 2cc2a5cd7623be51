package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"flightstream-service/pkg/logger"
)

// UpstreamOAuth handles client-credentials authentication with the flight provider
type UpstreamOAuth struct {
	config *clientcredentials.Config
	logger logger.Logger
}

// NewUpstreamOAuth returns nil when no token URL or client id is configured
func NewUpstreamOAuth(tokenURL, clientID, clientSecret string, logger logger.Logger) *UpstreamOAuth {
	if tokenURL == "" || clientID == "" {
		return nil
	}
	return &UpstreamOAuth{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		logger: logger,
	}
}

// GetTokenSource returns a caching token source
func (o *UpstreamOAuth) GetTokenSource(ctx context.Context) oauth2.TokenSource {
	return o.config.TokenSource(ctx)
}

// HTTPClient returns a client that attaches bearer tokens to every request
func (o *UpstreamOAuth) HTTPClient(ctx context.Context, timeout time.Duration) *http.Client {
	client := oauth2.NewClient(ctx, o.GetTokenSource(ctx))
	client.Timeout = timeout
	o.logger.Info("Upstream OAuth enabled", "tokenURL", o.config.TokenURL)
	return client
}

// TokenToJSON converts a token to JSON
func (o *UpstreamOAuth) TokenToJSON(token *oauth2.Token) (string, error) {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
