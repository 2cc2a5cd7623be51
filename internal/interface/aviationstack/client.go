package aviationstack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"
)

const (
	defaultBaseURL = "https://api.aviationstack.com"
	flightsPath    = "/v1/flights"

	// DefaultPageSize is requested by unfiltered fetches
	DefaultPageSize = 100

	// Connection pool settings
	maxIdleConns        = 10
	maxConnsPerHost     = 5
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second

	// error bodies are truncated to this many bytes
	maxErrorBody = 512

	// MaxResponseSize caps the bytes read from one response
	MaxResponseSize = 16 << 20
)

// Query parameters understood by the provider
const (
	ParamAirlineIATA  = "airline_iata"
	ParamFlightNumber = "flight_number"
	ParamDepIATA      = "dep_iata"
	ParamArrIATA      = "arr_iata"
	ParamFlightStatus = "flight_status"
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client, e.g. one from oauth2 client credentials.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets the base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithPageSize sets the limit sent with unfiltered fetches.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outbound requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			c.limiter = nil
		}
	}
}

// Client fetches flights from the AviationStack API.
type Client struct {
	baseURL    string
	accessKey  string
	pageSize   int
	maxBody    int64
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ repository.FlightProvider = (*Client)(nil)

// NewClient creates an AviationStack client with connection pooling.
func NewClient(accessKey string, opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}

	c := &Client{
		baseURL:   defaultBaseURL,
		accessKey: accessKey,
		pageSize:  DefaultPageSize,
		maxBody:   MaxResponseSize,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// flightsResponse mirrors the JSON shape returned by /v1/flights.
type flightsResponse struct {
	Pagination *pagination     `json:"pagination"`
	Data       []entity.Flight `json:"data"`
	Error      *apiError       `json:"error"`
}

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
	Total  int `json:"total"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) unauthorized() bool {
	code := strings.ToLower(e.Code)
	return strings.Contains(code, "access_key") || strings.Contains(code, "unauthorized")
}

// Fetch performs one request with the given filters forwarded verbatim.
// An empty filter set requests the configured page size. No retries are made.
func (c *Client) Fetch(ctx context.Context, filters map[string]string) ([]entity.Flight, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, entity.NewUpstreamError(entity.ErrUnreachable, 0, fmt.Errorf("waiting for rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(filters), nil)
	if err != nil {
		return nil, entity.NewUpstreamError(entity.ErrUnreachable, 0, fmt.Errorf("creating request: %w", withoutURL(err)))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, entity.NewUpstreamError(entity.ErrUnreachable, 0, fmt.Errorf("executing %s %s: %w", http.MethodGet, flightsPath, withoutURL(err)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, entity.NewUpstreamError(entity.ErrUnreachable, resp.StatusCode, fmt.Errorf("reading body: %w", err))
	}
	if int64(len(body)) > c.maxBody {
		return nil, entity.NewUpstreamError(entity.ErrBadResponse, resp.StatusCode, fmt.Errorf("response exceeds %d bytes", c.maxBody))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, entity.NewUpstreamError(entity.ErrUnauthorized, resp.StatusCode, fmt.Errorf("rejected: %s", truncate(body)))
	}

	var raw flightsResponse
	decodeErr := json.Unmarshal(body, &raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && raw.Error != nil && raw.Error.unauthorized() {
			return nil, entity.NewUpstreamError(entity.ErrUnauthorized, resp.StatusCode, fmt.Errorf("%s: %s", raw.Error.Code, raw.Error.Message))
		}
		return nil, entity.NewUpstreamError(entity.ErrBadResponse, resp.StatusCode, fmt.Errorf("unexpected status: %s", truncate(body)))
	}
	if decodeErr != nil {
		return nil, entity.NewUpstreamError(entity.ErrBadResponse, resp.StatusCode, fmt.Errorf("parsing response: %w", decodeErr))
	}
	if raw.Error != nil {
		kind := entity.ErrBadResponse
		if raw.Error.unauthorized() {
			kind = entity.ErrUnauthorized
		}
		return nil, entity.NewUpstreamError(kind, resp.StatusCode, fmt.Errorf("%s: %s", raw.Error.Code, raw.Error.Message))
	}

	if raw.Data == nil {
		return []entity.Flight{}, nil
	}
	return raw.Data, nil
}

func (c *Client) requestURL(filters map[string]string) string {
	q := url.Values{}
	for name, value := range filters {
		q.Set(name, value)
	}
	q.Set("access_key", c.accessKey)
	if len(filters) == 0 {
		q.Set("limit", strconv.Itoa(c.pageSize))
	}
	return c.baseURL + flightsPath + "?" + q.Encode()
}

// withoutURL drops the request URL from err; it carries the access key
func withoutURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
