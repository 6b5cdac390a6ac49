package models

import (
	"fmt"
	"time"
)

// RawQuote is a provider's current-price snapshot before resolution.
// PrevClose is the provider's own previous-close field; during market
// hours it is authoritative, after hours it may lag one session.
type RawQuote struct {
	Code      string    `json:"code"`
	Price     float64   `json:"price"`
	PrevClose float64   `json:"prev_close"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionBar is a single completed trading session's OHLCV summary.
type SessionBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Quote is a fully resolved price for one symbol. Change and
// ChangePercent both stay 0 when PreviousClose is unknown (zero): with
// no reference close the quote makes no change claim at all, rather
// than reporting the raw price as a gain.
type Quote struct {
	Code            string      `json:"code"`
	CurrentPrice    float64     `json:"current_price"`
	PreviousClose   float64     `json:"previous_close"`
	Change          float64     `json:"change"`
	ChangePercent   float64     `json:"change_percent"`
	AsOf            time.Time   `json:"as_of"`
	MarketWasClosed bool        `json:"market_was_closed"`
	Stale           bool        `json:"stale,omitempty"` // served from an expired cache entry after a fetch failure
	SourceUsed      SourceName  `json:"source_used"`
	Class           MarketClass `json:"class"`
}

// Unavailable reports whether every source in the symbol's chain failed.
func (q *Quote) Unavailable() bool {
	return q.SourceUsed == SourceNone
}

// SourceErrorReason classifies adapter failures.
type SourceErrorReason string

const (
	SourceErrUnavailable SourceErrorReason = "unavailable"
	SourceErrNotFound    SourceErrorReason = "not_found"
	SourceErrTimeout     SourceErrorReason = "timeout"
	SourceErrMalformed   SourceErrorReason = "malformed"
)

// SourceError is the only error type a quote source returns across its
// boundary. HTTP failures, bad payloads, and timeouts are all folded
// into one of the four reasons.
type SourceError struct {
	Source SourceName
	Reason SourceErrorReason
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError wraps err as a SourceError for the given provider.
func NewSourceError(source SourceName, reason SourceErrorReason, err error) *SourceError {
	return &SourceError{Source: source, Reason: reason, Err: err}
}
