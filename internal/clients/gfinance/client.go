// Package gfinance reads P/E ratio and earnings date from Google Finance quote pages
package gfinance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"github.com/bobmcallan/folio/internal/clients/breaker"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	DefaultBaseURL  = "https://www.google.com/finance"
	DefaultExchange = "NSE"
	DefaultTimeout  = 10 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Selectors for the "key stats" rows of the quote page. Google obfuscates
// class names, so rows are matched by class substring.
const (
	statRowSelector   = `div[class*="gyFHrc"]`
	statLabelSelector = `div[class*="mfs7Fc"]`
	statValueSelector = `div[class*="P6K39c"]`
)

// Client implements RatioFetcher by scraping the quote page
type Client struct {
	baseURL    string
	exchange   string
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

// WithExchange sets the exchange code appended to each symbol
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		if exchange != "" {
			c.exchange = exchange
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

// NewClient creates a new Google Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		exchange: DefaultExchange,
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
		c.breakerSettings.IsSuccessful = isNotFound
	}
	c.breaker = breaker.New("google", c.breakerSettings, c.logger)

	return c
}

// StatusError is a non-OK response from the quote page
type StatusError struct {
	StatusCode int
	Quote      string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("google finance: status %d for %s", e.StatusCode, e.Quote)
}

// isNotFound keeps unknown quotes from tripping the breaker
func isNotFound(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// FetchRatioAndEarnings scrapes the quote page for symbol. Either field of the
// result may be nil; a page without either is still a successful fetch.
func (c *Client) FetchRatioAndEarnings(ctx context.Context, symbol string) (*models.RatioEarnings, error) {
	quote := strings.TrimSpace(symbol) + ":" + c.exchange

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getPage(ctx, quote)
	})
	if err != nil {
		return nil, err
	}
	doc := out.(*goquery.Document)

	result := parseStats(doc)
	result.Symbol = symbol
	result.Timestamp = c.now()

	c.logger.Debug().
		Str("symbol", symbol).
		Bool("pe_ratio", result.PERatio != nil).
		Bool("earnings", result.LatestEarnings != nil).
		Msg("Google Finance stats")

	return result, nil
}

func (c *Client) getPage(ctx context.Context, quote string) (*goquery.Document, error) {
	reqURL := fmt.Sprintf("%s/quote/%s", c.baseURL, url.PathEscape(quote))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn().Err(err).Str("quote", quote).Dur("elapsed", elapsed).Msg("Google Finance request failed")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Quote: quote}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// parseStats walks the key-stats rows. The first matching row wins for each field.
func parseStats(doc *goquery.Document) *models.RatioEarnings {
	result := &models.RatioEarnings{}

	doc.Find(statRowSelector).Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find(statLabelSelector).First().Text())
		value := strings.TrimSpace(row.Find(statValueSelector).First().Text())
		lower := strings.ToLower(label)

		switch {
		case result.PERatio == nil && (strings.Contains(lower, "p/e ratio") || strings.Contains(lower, "pe ratio")):
			if pe, ok := parseRatio(value); ok {
				result.PERatio = &pe
			}
		case result.LatestEarnings == nil && strings.Contains(lower, "earnings"):
			if value != "" && value != "-" {
				v := value
				result.LatestEarnings = &v
			}
		}
	})

	return result
}

// parseRatio accepts values like "28.41" or "1,204.50"; "-" and blanks are absent.
func parseRatio(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var _ interfaces.RatioFetcher = (*Client)(nil)
