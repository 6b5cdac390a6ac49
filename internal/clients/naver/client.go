// Package naver provides the primary domestic-equity quote client.
package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://polling.finance.naver.com/api/realtime/domestic/stock"
	DefaultChartURL  = "https://m.stock.naver.com/api/stock"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client fetches domestic equity quotes from Naver Finance. It covers
// KOSPI and KOSDAQ codes; metal futures fall through to the Daum client.
type Client struct {
	baseURL    string
	chartURL   string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the realtime quote base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithChartURL sets the daily price history base URL
func WithChartURL(chartURL string) ClientOption {
	return func(c *Client) {
		c.chartURL = strings.TrimRight(chartURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Naver Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		chartURL: DefaultChartURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies this provider in source chains.
func (c *Client) Name() models.SourceName {
	return models.SourceNaver
}

// realtimeResponse is the polling endpoint's payload shape.
type realtimeResponse struct {
	Datas []realtimeData `json:"datas"`
}

// realtimeData carries one instrument's snapshot. Numeric fields arrive
// as comma-grouped strings.
type realtimeData struct {
	ClosePrice                  string `json:"closePrice"`
	CompareToPreviousClosePrice string `json:"compareToPreviousClosePrice"`
	FluctuationsRatio           string `json:"fluctuationsRatio"`
	MarketStatus                string `json:"marketStatus"`
}

// FetchCurrent retrieves the current price snapshot for a domestic code.
func (c *Client) FetchCurrent(ctx context.Context, code string) (*models.RawQuote, error) {
	var parsed realtimeResponse
	if err := c.get(ctx, fmt.Sprintf("%s/%s", c.baseURL, code), &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Datas) == 0 {
		return nil, models.NewSourceError(c.Name(), models.SourceErrNotFound, fmt.Errorf("no data for %s", code))
	}

	data := parsed.Datas[0]
	price, err := parsePrice(data.ClosePrice)
	if err != nil {
		return nil, models.NewSourceError(c.Name(), models.SourceErrMalformed, fmt.Errorf("price %q: %w", data.ClosePrice, err))
	}

	quote := &models.RawQuote{
		Code:      code,
		Price:     price,
		Timestamp: time.Now(),
	}

	// The endpoint reports the day change, not the previous close directly.
	if change, err := parsePrice(data.CompareToPreviousClosePrice); err == nil {
		quote.PrevClose = price - change
	}

	return quote, nil
}

// dailyPriceResponse is the mobile price-history payload shape.
type dailyPriceResponse []dailyPrice

type dailyPrice struct {
	LocalTradedAt            string `json:"localTradedAt"` // "2026-03-06"
	ClosePrice               string `json:"closePrice"`
	OpenPrice                string `json:"openPrice"`
	HighPrice                string `json:"highPrice"`
	LowPrice                 string `json:"lowPrice"`
	AccumulatedTradingVolume string `json:"accumulatedTradingVolume"`
}

// FetchSessionBar retrieves the daily bar for the given trading date.
func (c *Client) FetchSessionBar(ctx context.Context, code string, date time.Time) (*models.SessionBar, error) {
	url := fmt.Sprintf("%s/%s/price?pageSize=10&page=1", c.chartURL, code)

	var parsed dailyPriceResponse
	if err := c.get(ctx, url, &parsed); err != nil {
		return nil, err
	}

	want := date.Format("2006-01-02")
	for _, day := range parsed {
		if day.LocalTradedAt != want {
			continue
		}
		bar, err := day.toBar(date)
		if err != nil {
			return nil, models.NewSourceError(c.Name(), models.SourceErrMalformed, err)
		}
		return bar, nil
	}

	return nil, models.NewSourceError(c.Name(), models.SourceErrNotFound, fmt.Errorf("no bar for %s on %s", code, want))
}

func (d dailyPrice) toBar(date time.Time) (*models.SessionBar, error) {
	closePrice, err := parsePrice(d.ClosePrice)
	if err != nil {
		return nil, fmt.Errorf("close %q: %w", d.ClosePrice, err)
	}
	bar := &models.SessionBar{Date: date, Close: closePrice}

	// Open/high/low/volume are best-effort; only the close is required.
	if v, err := parsePrice(d.OpenPrice); err == nil {
		bar.Open = v
	}
	if v, err := parsePrice(d.HighPrice); err == nil {
		bar.High = v
	}
	if v, err := parsePrice(d.LowPrice); err == nil {
		bar.Low = v
	}
	if v, err := parsePrice(d.AccumulatedTradingVolume); err == nil {
		bar.Volume = int64(v)
	}
	return bar, nil
}

// get performs a rate-limited GET and maps all failures to SourceError.
func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.NewSourceError(c.Name(), models.SourceErrTimeout, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.NewSourceError(c.Name(), models.SourceErrUnavailable, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", url).Msg("Naver API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return models.NewSourceError(c.Name(), models.SourceErrTimeout, err)
		}
		return models.NewSourceError(c.Name(), models.SourceErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.NewSourceError(c.Name(), models.SourceErrNotFound, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.NewSourceError(c.Name(), models.SourceErrUnavailable, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return models.NewSourceError(c.Name(), models.SourceErrMalformed, err)
	}

	return nil
}

// parsePrice parses a comma-grouped numeric string like "75,000".
func parsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return 0, fmt.Errorf("empty price")
	}
	return strconv.ParseFloat(s, 64)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Ensure Client implements QuoteSource
var _ interfaces.QuoteSource = (*Client)(nil)
