// Package yahoo provides the international-equity quote client.
package yahoo

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
	DefaultBaseURL   = "https://query1.finance.yahoo.com/v8/finance/chart"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client fetches quotes from the Yahoo Finance chart API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
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

// NewClient creates a new Yahoo Finance client
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
	return models.SourceYahoo
}

// chartResponse mirrors the v8 chart API envelope.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []float64 `json:"open"`
			High   []float64 `json:"high"`
			Low    []float64 `json:"low"`
			Close  []float64 `json:"close"`
			Volume []int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchCurrent retrieves the current price snapshot for a ticker.
func (c *Client) FetchCurrent(ctx context.Context, code string) (*models.RawQuote, error) {
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", c.baseURL, code)

	result, err := c.getChart(ctx, url, code)
	if err != nil {
		return nil, err
	}

	meta := result.Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, models.NewSourceError(c.Name(), models.SourceErrMalformed, fmt.Errorf("no market price for %s", code))
	}

	ts := c.now()
	if meta.RegularMarketTime > 0 {
		ts = time.Unix(meta.RegularMarketTime, 0)
	}

	return &models.RawQuote{
		Code:      code,
		Price:     meta.RegularMarketPrice,
		PrevClose: meta.ChartPreviousClose,
		Timestamp: ts,
	}, nil
}

// FetchSessionBar retrieves the daily bar for the given trading date.
// The chart is queried with a window around the date; when duplicate
// timestamps land on the same date the latest one strictly before now
// is used.
func (c *Client) FetchSessionBar(ctx context.Context, code string, date time.Time) (*models.SessionBar, error) {
	from := date.AddDate(0, 0, -1).Unix()
	to := date.AddDate(0, 0, 1).Unix()
	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d", c.baseURL, code, from, to)

	result, err := c.getChart(ctx, url, code)
	if err != nil {
		return nil, err
	}

	if len(result.Indicators.Quote) == 0 {
		return nil, models.NewSourceError(c.Name(), models.SourceErrMalformed, fmt.Errorf("no quote series for %s", code))
	}
	series := result.Indicators.Quote[0]

	want := date.Format("2006-01-02")
	now := c.now()

	best := -1
	var bestAt time.Time
	for i, unix := range result.Timestamp {
		at := time.Unix(unix, 0).In(date.Location())
		if at.Format("2006-01-02") != want || !at.Before(now) {
			continue
		}
		if i >= len(series.Close) || series.Close[i] <= 0 {
			continue
		}
		if best < 0 || at.After(bestAt) {
			best, bestAt = i, at
		}
	}

	if best < 0 {
		return nil, models.NewSourceError(c.Name(), models.SourceErrNotFound, fmt.Errorf("no bar for %s on %s", code, want))
	}

	bar := &models.SessionBar{Date: date, Close: series.Close[best]}
	if best < len(series.Open) {
		bar.Open = series.Open[best]
	}
	if best < len(series.High) {
		bar.High = series.High[best]
	}
	if best < len(series.Low) {
		bar.Low = series.Low[best]
	}
	if best < len(series.Volume) {
		bar.Volume = series.Volume[best]
	}
	return bar, nil
}

// getChart performs the request and unwraps the chart envelope.
func (c *Client) getChart(ctx context.Context, url, code string) (*chartResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, models.NewSourceError(c.Name(), models.SourceErrTimeout, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewSourceError(c.Name(), models.SourceErrUnavailable, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	c.logger.Debug().Str("url", url).Msg("Yahoo API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, models.NewSourceError(c.Name(), models.SourceErrTimeout, err)
		}
		return nil, models.NewSourceError(c.Name(), models.SourceErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.NewSourceError(c.Name(), models.SourceErrNotFound, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, models.NewSourceError(c.Name(), models.SourceErrUnavailable, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, models.NewSourceError(c.Name(), models.SourceErrMalformed, err)
	}

	if parsed.Chart.Error != nil {
		if parsed.Chart.Error.Code == "Not Found" {
			return nil, models.NewSourceError(c.Name(), models.SourceErrNotFound, fmt.Errorf("%s", parsed.Chart.Error.Description))
		}
		return nil, models.NewSourceError(c.Name(), models.SourceErrUnavailable, fmt.Errorf("%s: %s", parsed.Chart.Error.Code, parsed.Chart.Error.Description))
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, models.NewSourceError(c.Name(), models.SourceErrNotFound, fmt.Errorf("empty result for %s", code))
	}

	return &parsed.Chart.Result[0], nil
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
