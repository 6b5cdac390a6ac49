// Package models defines data structures for Folio
package models

// MarketClass categorizes an instrument by the venue it trades on.
// The class determines trading hours and which quote sources apply.
type MarketClass string

const (
	MarketKRKospi      MarketClass = "kr_kospi"
	MarketKRKosdaq     MarketClass = "kr_kosdaq"
	MarketUSEquity     MarketClass = "us_equity"
	MarketMetalFutures MarketClass = "metal_futures"
)

// SourceName identifies an upstream quote provider.
type SourceName string

const (
	SourceNaver SourceName = "naver"
	SourceDaum  SourceName = "daum"
	SourceYahoo SourceName = "yahoo"

	// SourceNone marks a quote for which every provider in the chain
	// failed. Callers must treat such quotes as unknown, not unchanged.
	SourceNone SourceName = "none"
)

// Symbol pairs a raw instrument code with its declared trading
// currency. Callers may leave Currency empty when the instrument never
// declared one, and Class unset; the resolver classifies from Code and
// Currency on every resolution.
type Symbol struct {
	Code     string      `json:"code"`
	Currency string      `json:"currency"` // "KRW" or "USD"
	Class    MarketClass `json:"class"`
}
