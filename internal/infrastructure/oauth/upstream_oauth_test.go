package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightstream-service/pkg/logger"
)

func TestNewUpstreamOAuthDisabledWithoutConfig(t *testing.T) {
	assert.Nil(t, NewUpstreamOAuth("", "id", "secret", logger.NewNopLogger()))
	assert.Nil(t, NewUpstreamOAuth("http://token", "", "secret", logger.NewNopLogger()))
}

func TestHTTPClientAttachesBearerToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer apiSrv.Close()

	o := NewUpstreamOAuth(tokenSrv.URL, "id", "secret", logger.NewNopLogger())
	require.NotNil(t, o)

	client := o.HTTPClient(context.Background(), time.Second)
	resp, err := client.Get(apiSrv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	token, err := o.GetTokenSource(context.Background()).Token()
	require.NoError(t, err)
	out, err := o.TokenToJSON(token)
	require.NoError(t, err)
	assert.Contains(t, out, "tok-123")
}
