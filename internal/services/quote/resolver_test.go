package quote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/market"
	"github.com/folioapp/folio/internal/models"
)

var kst = time.FixedZone("KST", 9*3600)

// sym builds a Symbol with no declared currency, the common case for
// domestic codes in these tests.
func sym(code string) models.Symbol {
	return models.Symbol{Code: code}
}

// fakeSource is a scriptable QuoteSource for resolver and cache tests.
type fakeSource struct {
	name    models.SourceName
	current func(code string) (*models.RawQuote, error)
	bar     func(code string, date time.Time) (*models.SessionBar, error)

	mu           sync.Mutex
	currentCalls int
	barDates     []time.Time
}

func (f *fakeSource) Name() models.SourceName { return f.name }

func (f *fakeSource) FetchCurrent(ctx context.Context, code string) (*models.RawQuote, error) {
	f.mu.Lock()
	f.currentCalls++
	f.mu.Unlock()
	if f.current == nil {
		return nil, models.NewSourceError(f.name, models.SourceErrUnavailable, errors.New("not scripted"))
	}
	return f.current(code)
}

func (f *fakeSource) FetchSessionBar(ctx context.Context, code string, date time.Time) (*models.SessionBar, error) {
	f.mu.Lock()
	f.barDates = append(f.barDates, date)
	f.mu.Unlock()
	if f.bar == nil {
		return nil, models.NewSourceError(f.name, models.SourceErrUnavailable, errors.New("not scripted"))
	}
	return f.bar(code, date)
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentCalls
}

func (f *fakeSource) barCalls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.barDates...)
}

func newTestResolver(sources ...*fakeSource) *Resolver {
	list := make([]interfaces.QuoteSource, len(sources))
	for i, s := range sources {
		list[i] = s
	}
	return NewResolver(market.NewClassifier(), market.NewCalendar(), list, common.NewSilentLogger())
}

func TestResolveMarketOpenFastPath(t *testing.T) {
	naver := &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 74000}, nil
		},
	}

	// Tuesday 10:00 KST, KOSPI open.
	now := time.Date(2025, 11, 18, 10, 0, 0, 0, kst)
	r := newTestResolver(naver, &fakeSource{name: models.SourceDaum})

	quote := r.Resolve(context.Background(), sym("005930"), now)

	if quote.SourceUsed != models.SourceNaver {
		t.Errorf("SourceUsed = %s, want naver", quote.SourceUsed)
	}
	if quote.MarketWasClosed {
		t.Error("MarketWasClosed = true during session")
	}
	if quote.PreviousClose != 74000 {
		t.Errorf("PreviousClose = %v, want 74000", quote.PreviousClose)
	}
	if quote.Change != 1000 {
		t.Errorf("Change = %v, want 1000", quote.Change)
	}
	if len(naver.barCalls()) != 0 {
		t.Errorf("session bar fetched %d times during open market, want 0", len(naver.barCalls()))
	}
}

func TestResolveFallbackOrder(t *testing.T) {
	naver := &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			return nil, models.NewSourceError(models.SourceNaver, models.SourceErrUnavailable, errors.New("down"))
		},
	}
	daum := &fakeSource{
		name: models.SourceDaum,
		current: func(code string) (*models.RawQuote, error) {
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 74000}, nil
		},
	}

	now := time.Date(2025, 11, 18, 10, 0, 0, 0, kst)
	r := newTestResolver(naver, daum)

	quote := r.Resolve(context.Background(), sym("005930"), now)

	if quote.SourceUsed != models.SourceDaum {
		t.Errorf("SourceUsed = %s, want daum", quote.SourceUsed)
	}
	if naver.calls() != 1 || daum.calls() != 1 {
		t.Errorf("calls naver=%d daum=%d, want 1 each", naver.calls(), daum.calls())
	}
}

func TestResolveAllSourcesFail(t *testing.T) {
	fail := func(code string) (*models.RawQuote, error) {
		return nil, models.NewSourceError(models.SourceNaver, models.SourceErrTimeout, errors.New("slow"))
	}
	naver := &fakeSource{name: models.SourceNaver, current: fail}
	daum := &fakeSource{name: models.SourceDaum, current: fail}

	now := time.Date(2025, 11, 18, 10, 0, 0, 0, kst)
	r := newTestResolver(naver, daum)

	quote := r.Resolve(context.Background(), sym("005930"), now)

	if !quote.Unavailable() {
		t.Fatalf("expected unavailable quote, got source %s", quote.SourceUsed)
	}
	if quote.CurrentPrice != 0 || quote.PreviousClose != 0 || quote.Change != 0 {
		t.Errorf("zero quote has non-zero fields: %+v", quote)
	}
}

func TestResolveClosedMarketUsesSessionBar(t *testing.T) {
	// Monday 02:00 KST: market closed, last completed session is Friday.
	now := time.Date(2025, 11, 17, 2, 0, 0, 0, kst)
	friday := time.Date(2025, 11, 14, 0, 0, 0, 0, kst)

	naver := &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			// Adapter's own prev close lags: it reports Thursday's close.
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 73000}, nil
		},
		bar: func(code string, date time.Time) (*models.SessionBar, error) {
			return &models.SessionBar{Date: date, Close: 74500}, nil
		},
	}

	r := newTestResolver(naver, &fakeSource{name: models.SourceDaum})
	quote := r.Resolve(context.Background(), sym("005930"), now)

	if !quote.MarketWasClosed {
		t.Error("MarketWasClosed = false outside session")
	}
	if quote.PreviousClose != 74500 {
		t.Errorf("PreviousClose = %v, want Friday bar close 74500", quote.PreviousClose)
	}
	bars := naver.barCalls()
	if len(bars) != 1 {
		t.Fatalf("bar calls = %d, want 1", len(bars))
	}
	if !bars[0].Equal(friday) {
		t.Errorf("bar date = %v, want %v", bars[0], friday)
	}
}

func TestResolveOffByOneRetry(t *testing.T) {
	// Monday 16:00 KST, just after close. The last completed session is
	// Monday itself; the Monday bar matches the current price's session,
	// so the resolver must step back to Friday.
	now := time.Date(2025, 11, 17, 16, 0, 0, 0, kst)
	monday := time.Date(2025, 11, 17, 0, 0, 0, 0, kst)
	friday := time.Date(2025, 11, 14, 0, 0, 0, 0, kst)

	naver := &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 75000}, nil
		},
		bar: func(code string, date time.Time) (*models.SessionBar, error) {
			if date.Equal(monday) {
				// Monday's just-closed bar: same price the snapshot shows.
				return &models.SessionBar{Date: monday, Close: 75000}, nil
			}
			return &models.SessionBar{Date: date, Close: 74000}, nil
		},
	}

	r := newTestResolver(naver, &fakeSource{name: models.SourceDaum})
	quote := r.Resolve(context.Background(), sym("005930"), now)

	if quote.PreviousClose != 74000 {
		t.Errorf("PreviousClose = %v, want Friday close 74000 after retry", quote.PreviousClose)
	}
	if quote.Change != 1000 {
		t.Errorf("Change = %v, want 1000 (not 0)", quote.Change)
	}
	bars := naver.barCalls()
	if len(bars) != 2 {
		t.Fatalf("bar calls = %d, want 2 (original + retry)", len(bars))
	}
	if !bars[1].Equal(friday) {
		t.Errorf("retry date = %v, want %v", bars[1], friday)
	}
}

func TestResolveDegradesToAdapterPrevClose(t *testing.T) {
	// Session-bar path fails entirely: keep the adapter's own previous
	// close even though it may lag a session.
	now := time.Date(2025, 11, 17, 2, 0, 0, 0, kst)

	naver := &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 74000}, nil
		},
		bar: func(code string, date time.Time) (*models.SessionBar, error) {
			return nil, models.NewSourceError(models.SourceNaver, models.SourceErrUnavailable, errors.New("chart down"))
		},
	}

	r := newTestResolver(naver, &fakeSource{name: models.SourceDaum})
	quote := r.Resolve(context.Background(), sym("005930"), now)

	if quote.SourceUsed != models.SourceNaver {
		t.Errorf("SourceUsed = %s, want naver", quote.SourceUsed)
	}
	if quote.PreviousClose != 74000 {
		t.Errorf("PreviousClose = %v, want degraded 74000", quote.PreviousClose)
	}
	if !quote.MarketWasClosed {
		t.Error("MarketWasClosed must stay true on the degraded path")
	}
}

func TestResolveMetalFuturesChain(t *testing.T) {
	daum := &fakeSource{
		name: models.SourceDaum,
		current: func(code string) (*models.RawQuote, error) {
			return &models.RawQuote{Code: code, Price: 445.5, PrevClose: 440.0}, nil
		},
	}
	naver := &fakeSource{name: models.SourceNaver}

	// Metal futures trade until 15:45 KST.
	now := time.Date(2025, 11, 18, 15, 40, 0, 0, kst)
	r := newTestResolver(naver, daum)

	quote := r.Resolve(context.Background(), sym("M04020000"), now)

	if quote.SourceUsed != models.SourceDaum {
		t.Errorf("SourceUsed = %s, want daum", quote.SourceUsed)
	}
	if naver.calls() != 0 {
		t.Errorf("naver called %d times for metal futures, want 0", naver.calls())
	}
	if quote.Class != models.MarketMetalFutures {
		t.Errorf("Class = %s, want metal_futures", quote.Class)
	}
}

func TestResolveDeclaredCurrencyChain(t *testing.T) {
	yahoo := &fakeSource{
		name: models.SourceYahoo,
		current: func(code string) (*models.RawQuote, error) {
			return &models.RawQuote{Code: code, Price: 231.5, PrevClose: 229.0}, nil
		},
	}
	naver := &fakeSource{name: models.SourceNaver}

	// Tuesday 11:00 New York, US session open.
	now := time.Date(2025, 11, 18, 11, 0, 0, 0, time.FixedZone("EST", -5*3600))
	r := newTestResolver(naver, yahoo)

	quote := r.Resolve(context.Background(), models.Symbol{Code: "AAPL", Currency: "USD"}, now)

	if quote.Class != models.MarketUSEquity {
		t.Errorf("Class = %s, want us_equity", quote.Class)
	}
	if quote.SourceUsed != models.SourceYahoo {
		t.Errorf("SourceUsed = %s, want yahoo", quote.SourceUsed)
	}
	if naver.calls() != 0 {
		t.Errorf("naver called %d times for a USD equity, want 0", naver.calls())
	}
}

func TestResolveZeroPrevCloseGuard(t *testing.T) {
	naver := &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 0}, nil
		},
	}

	now := time.Date(2025, 11, 18, 10, 0, 0, 0, kst)
	r := newTestResolver(naver, &fakeSource{name: models.SourceDaum})

	quote := r.Resolve(context.Background(), sym("005930"), now)

	if quote.Change != 0 || quote.ChangePercent != 0 {
		t.Errorf("change fields must stay 0 with unknown prev close, got %v / %v", quote.Change, quote.ChangePercent)
	}
}
