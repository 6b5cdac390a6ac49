// Package daum provides the secondary domestic quote client. It backs
// up Naver for KR equities and is the only source covering KRX metal
// futures.
package daum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://finance.daum.net/api/quotes"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client fetches quotes from Daum Finance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time // injectable clock for bar tie-breaking
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
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

// NewClient creates a new Daum Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies this provider in source chains.
func (c *Client) Name() models.SourceName {
	return models.SourceDaum
}

// quoteResponse is the Daum quote payload shape. Prices arrive as JSON
// numbers, unlike Naver's comma-grouped strings.
type quoteResponse struct {
	SymbolCode       string  `json:"symbolCode"`
	TradePrice       float64 `json:"tradePrice"`
	PrevClosingPrice float64 `json:"prevClosingPrice"`
	ChangePrice      float64 `json:"changePrice"`
	TradeDate        string  `json:"tradeDate"` // "20260306"
}

// FetchCurrent retrieves the current price snapshot for a code.
func (c *Client) FetchCurrent(ctx context.Context, code string) (*models.RawQuote, error) {
	var parsed quoteResponse
	if err := c.get(ctx, fmt.Sprintf("%s/%s", c.baseURL, code), &parsed); err != nil {
		return nil, err
	}

	if parsed.TradePrice <= 0 {
		return nil, models.NewSourceError(c.Name(), models.SourceErrMalformed, fmt.Errorf("non-positive trade price for %s", code))
	}

	return &models.RawQuote{
		Code:      code,
		Price:     parsed.TradePrice,
		PrevClose: parsed.PrevClosingPrice,
		Timestamp: c.now(),
	}, nil
}

// daysResponse is the daily candle payload shape.
type daysResponse struct {
	Data []dayCandle `json:"data"`
}

type dayCandle struct {
	Date                 string  `json:"date"` // "2026-03-06 15:45:00"
	TradePrice           float64 `json:"tradePrice"`
	OpeningPrice         float64 `json:"openingPrice"`
	HighPrice            float64 `json:"highPrice"`
	LowPrice             float64 `json:"lowPrice"`
	CandleAccTradeVolume float64 `json:"candleAccTradeVolume"`
}

// FetchSessionBar retrieves the daily bar for the given trading date.
// Providers occasionally return duplicate candles for one date; the
// chronologically latest one strictly before now wins.
func (c *Client) FetchSessionBar(ctx context.Context, code string, date time.Time) (*models.SessionBar, error) {
	url := fmt.Sprintf("%s/%s/days?perPage=30&page=1", c.baseURL, code)

	var parsed daysResponse
	if err := c.get(ctx, url, &parsed); err != nil {
		return nil, err
	}

	want := date.Format("2006-01-02")
	now := c.now()

	var best *dayCandle
	var bestAt time.Time
	for i := range parsed.Data {
		candle := &parsed.Data[i]
		at, err := time.ParseInLocation("2006-01-02 15:04:05", candle.Date, date.Location())
		if err != nil || at.Format("2006-01-02") != want {
			continue
		}
		if !at.Before(now) {
			continue
		}
		if best == nil || at.After(bestAt) {
			best, bestAt = candle, at
		}
	}

	if best == nil {
		return nil, models.NewSourceError(c.Name(), models.SourceErrNotFound, fmt.Errorf("no bar for %s on %s", code, want))
	}

	return &models.SessionBar{
		Date:   date,
		Open:   best.OpeningPrice,
		High:   best.HighPrice,
		Low:    best.LowPrice,
		Close:  best.TradePrice,
		Volume: int64(best.CandleAccTradeVolume),
	}, nil
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
	req.Header.Set("Referer", "https://finance.daum.net")

	c.logger.Debug().Str("url", url).Msg("Daum API request")

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

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Ensure Client implements QuoteSource
var _ interfaces.QuoteSource = (*Client)(nil)
