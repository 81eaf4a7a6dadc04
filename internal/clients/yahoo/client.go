// Package yahoo provides a price client for the Yahoo Finance chart API
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/sony/gobreaker"

	"github.com/bobmcallan/folio/internal/clients/breaker"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	DefaultTimeout = 10 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	pricePath    = "$.chart.result[0].meta.regularMarketPrice"
	currencyPath = "$.chart.result[0].meta.currency"
)

// Client implements PriceFetcher against the chart endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time

	breakerSettings breaker.Settings
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL. An empty value keeps the default.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithBreakerSettings replaces the default circuit breaker settings
func WithBreakerSettings(st breaker.Settings) ClientOption {
	return func(c *Client) {
		c.breakerSettings = st
	}
}

// NewClient creates a new Yahoo Finance client. No API key is required.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:          common.NewSilentLogger(),
		now:             time.Now,
		breakerSettings: breaker.DefaultSettings(),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.breakerSettings.IsSuccessful == nil {
		c.breakerSettings.IsSuccessful = isClientError
	}
	c.breaker = breaker.New("yahoo", c.breakerSettings, c.logger)

	return c
}

// APIError is a non-OK response from the chart endpoint
type APIError struct {
	StatusCode int
	Ticker     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo API error: status %d for %s: %s", e.StatusCode, e.Ticker, e.Message)
}

// isClientError treats 4xx responses (other than 429) as healthy source
// replies so unknown symbols do not trip the breaker.
func isClientError(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// FetchPrice retrieves the regular market price for symbol.
// A response without a positive price is an error.
func (c *Client) FetchPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	ticker := FormatSymbol(symbol)

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getChart(ctx, ticker)
	})
	if err != nil {
		return nil, err
	}

	price, err := extractFloat(out, pricePath)
	if err != nil {
		return nil, fmt.Errorf("no price for %s: %w", ticker, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("no price for %s: got %v", ticker, price)
	}

	currency, _ := extractString(out, currencyPath)

	c.logger.Debug().Str("symbol", symbol).Str("ticker", ticker).Float64("price", price).Msg("Yahoo price")

	return &models.PriceQuote{
		Symbol:    symbol,
		Price:     price,
		Currency:  currency,
		Timestamp: c.now(),
		Source:    "yahoo",
	}, nil
}

// getChart performs the GET and decodes the body into a generic document
func (c *Client) getChart(ctx context.Context, ticker string) (interface{}, error) {
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn().Err(err).Str("ticker", ticker).Dur("elapsed", elapsed).Msg("Yahoo request failed")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Ticker: ticker, Message: string(body)}
	}

	var doc interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug().Str("ticker", ticker).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Yahoo API call")
	return doc, nil
}

// first unwraps a one-element list; jsonpath is not consistent about
// returning a scalar or a list for indexed paths.
func first(v interface{}) interface{} {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}

func extractFloat(doc interface{}, path string) (float64, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, err
	}
	f, ok := first(v).(float64)
	if !ok {
		return 0, fmt.Errorf("%s is not a number: %v", path, v)
	}
	return f, nil
}

func extractString(doc interface{}, path string) (string, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return "", err
	}
	s, ok := first(v).(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string: %v", path, v)
	}
	return s, nil
}

var _ interfaces.PriceFetcher = (*Client)(nil)
