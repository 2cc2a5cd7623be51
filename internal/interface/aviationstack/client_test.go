package aviationstack

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightstream-service/internal/domain/entity"
)

const samplePayload = `{
  "pagination": {"limit": 100, "offset": 0, "count": 1, "total": 1},
  "data": [{
    "flight_date": "2024-05-01",
    "flight_status": "active",
    "departure": {"airport": "John F Kennedy International", "iata": "JFK", "delay": 12, "estimated_runway": "2024-05-01T10:12:00+00:00"},
    "arrival": {"airport": "Los Angeles International", "iata": "LAX", "baggage": "5"},
    "airline": {"name": "American Airlines", "iata": "AA", "icao": "AAL"},
    "flight": {"number": "100", "iata": "AA100", "icao": "AAL100"},
    "aircraft": null,
    "live": {"latitude": 40.1, "longitude": -80.2, "altitude": 10000, "speed_horizontal": 800, "is_ground": false}
  }]
}`

func TestFetchUnfilteredRequestsPageSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/flights", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("access_key"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	flights, err := client.Fetch(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.Equal(t, "2024-05-01-JFK", f.EventKey())
	assert.Equal(t, "AA", f.AirlineIATA())
	assert.Equal(t, "LAX", f.ArrivalIATA())
	assert.Equal(t, "5", f.Arrival.Baggage)
	require.NotNil(t, f.Departure.Delay)
	assert.Equal(t, 12, *f.Departure.Delay)
	assert.Equal(t, "2024-05-01T10:12:00+00:00", f.Departure.EstimatedRunway)
	assert.Nil(t, f.Aircraft)
	require.NotNil(t, f.Live)
	assert.InDelta(t, 800.0, f.Live.SpeedHorizontal, 0.01)
}

func TestFetchForwardsFiltersWithoutLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "AA", q.Get(ParamAirlineIATA))
		assert.Equal(t, "landed", q.Get(ParamFlightStatus))
		assert.Equal(t, "k", q.Get("access_key"))
		assert.False(t, q.Has("limit"))
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL+"/"), WithPageSize(500))
	flights, err := client.Fetch(context.Background(), map[string]string{
		ParamAirlineIATA:  "AA",
		ParamFlightStatus: "landed",
	})
	require.NoError(t, err)
	assert.Empty(t, flights)
	assert.NotNil(t, flights)
}

func TestFetchHonorsConfiguredPageSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data": null}`))
	}))
	defer srv.Close()

	flights, err := NewClient("k", WithBaseURL(srv.URL), WithPageSize(500)).Fetch(context.Background(), map[string]string{})
	require.NoError(t, err)
	assert.Empty(t, flights)
}

func TestFetchFailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"server error", http.StatusInternalServerError, `oops`, entity.ErrBadResponse},
		{"unauthorized status", http.StatusUnauthorized, `{}`, entity.ErrUnauthorized},
		{"forbidden status", http.StatusForbidden, `{}`, entity.ErrUnauthorized},
		{"invalid key body", http.StatusOK, `{"error": {"code": "invalid_access_key", "message": "bad key"}}`, entity.ErrUnauthorized},
		{"missing key body", http.StatusBadRequest, `{"error": {"code": "missing_access_key", "message": "no key"}}`, entity.ErrUnauthorized},
		{"rate limited body", http.StatusOK, `{"error": {"code": "usage_limit_reached", "message": "quota"}}`, entity.ErrBadResponse},
		{"malformed json", http.StatusOK, `{"data": [`, entity.ErrBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient("k", WithBaseURL(srv.URL)).Fetch(context.Background(), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var upstreamErr *entity.UpstreamError
			require.True(t, errors.As(err, &upstreamErr))
			assert.Equal(t, tt.status, upstreamErr.StatusCode)
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient("k", WithBaseURL(url), WithTimeout(time.Second)).Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, entity.ErrUnreachable)
}

func TestFetchErrorsDoNotLeakAccessKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient("SUPERSECRETKEY", WithBaseURL(url), WithTimeout(time.Second)).Fetch(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrUnreachable)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
	assert.Contains(t, err.Error(), "/v1/flights")

	_, err = NewClient("SUPERSECRETKEY", WithBaseURL("http://bad host")).Fetch(context.Background(), nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
}

func TestFetchRejectsOversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	client.maxBody = 64
	_, err := client.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, entity.ErrBadResponse)

	client.maxBody = int64(len(samplePayload))
	flights, err := client.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, flights, 1)
}

func TestFetchRateLimitRespectsContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(0.01))
	_, err := client.Fetch(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Fetch(ctx, nil)
	assert.ErrorIs(t, err, entity.ErrUnreachable)
	assert.Equal(t, int32(1), calls.Load())
}
