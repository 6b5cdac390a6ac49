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

// ctxAwareSource forwards the context into its scripted fetch, unlike
// fakeSource which ignores it.
type ctxAwareSource struct {
	name    models.SourceName
	current func(ctx context.Context) (*models.RawQuote, error)
}

func (s *ctxAwareSource) Name() models.SourceName { return s.name }

func (s *ctxAwareSource) FetchCurrent(ctx context.Context, code string) (*models.RawQuote, error) {
	return s.current(ctx)
}

func (s *ctxAwareSource) FetchSessionBar(ctx context.Context, code string, date time.Time) (*models.SessionBar, error) {
	return nil, models.NewSourceError(s.name, models.SourceErrUnavailable, errors.New("not scripted"))
}

// testClock is a settable time source shared with the cache under test.
type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.at = c.at.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, source *fakeSource, opts ...CacheOption) (*Cache, *testClock) {
	t.Helper()
	clock := &testClock{at: time.Date(2025, 11, 18, 10, 0, 0, 0, kst)}
	resolver := newTestResolver(source, &fakeSource{name: models.SourceDaum})
	opts = append([]CacheOption{WithClock(clock.Now)}, opts...)
	return NewCache(resolver, common.NewSilentLogger(), opts...), clock
}

func okSource() *fakeSource {
	return &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 74000}, nil
		},
	}
}

func TestCacheServesFreshEntry(t *testing.T) {
	source := okSource()
	cache, _ := newTestCache(t, source)

	first := cache.GetOrFetch(context.Background(), sym("005930"))
	second := cache.GetOrFetch(context.Background(), sym("005930"))

	if source.calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", source.calls())
	}
	if first != second {
		t.Error("second call should return the cached quote")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	source := okSource()
	cache, clock := newTestCache(t, source, WithTTL(3*time.Minute))

	cache.GetOrFetch(context.Background(), sym("005930"))
	clock.Advance(2 * time.Minute)
	cache.GetOrFetch(context.Background(), sym("005930"))
	if source.calls() != 1 {
		t.Errorf("upstream calls before expiry = %d, want 1", source.calls())
	}

	clock.Advance(2 * time.Minute) // past TTL
	cache.GetOrFetch(context.Background(), sym("005930"))
	if source.calls() != 2 {
		t.Errorf("upstream calls after expiry = %d, want 2", source.calls())
	}
}

func TestCacheInvalidate(t *testing.T) {
	source := okSource()
	cache, _ := newTestCache(t, source)

	cache.GetOrFetch(context.Background(), sym("005930"))
	cache.Invalidate("005930")
	cache.GetOrFetch(context.Background(), sym("005930"))

	if source.calls() != 2 {
		t.Errorf("upstream calls = %d, want 2 after invalidate", source.calls())
	}
}

func TestCacheCoalescesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	var mu sync.Mutex

	source := &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			<-release
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 74000}, nil
		},
	}
	cache, _ := newTestCache(t, source)

	const n = 10
	var wg sync.WaitGroup
	results := make([]*models.Quote, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.GetOrFetch(context.Background(), sym("005930"))
		}(i)
	}

	// Let the goroutines pile onto the same flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 1 {
		t.Errorf("upstream calls = %d, want 1 for %d concurrent requests", got, n)
	}
	for i, q := range results {
		if q == nil || q.CurrentPrice != 75000 {
			t.Errorf("result %d = %+v, want resolved quote", i, q)
		}
	}
}

func TestCacheServesStaleOnFetchFailure(t *testing.T) {
	healthy := true
	var mu sync.Mutex
	source := &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			mu.Lock()
			ok := healthy
			mu.Unlock()
			if !ok {
				return nil, models.NewSourceError(models.SourceNaver, models.SourceErrUnavailable, errors.New("down"))
			}
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 74000}, nil
		},
	}
	cache, clock := newTestCache(t, source, WithTTL(3*time.Minute))

	fresh := cache.GetOrFetch(context.Background(), sym("005930"))
	if fresh.Stale {
		t.Error("fresh quote marked stale")
	}

	mu.Lock()
	healthy = false
	mu.Unlock()
	clock.Advance(5 * time.Minute)

	stale := cache.GetOrFetch(context.Background(), sym("005930"))
	if !stale.Stale {
		t.Error("expected stale flag after failed refetch")
	}
	if stale.CurrentPrice != 75000 {
		t.Errorf("stale CurrentPrice = %v, want prior 75000", stale.CurrentPrice)
	}
}

func TestCacheIdleEviction(t *testing.T) {
	source := okSource()
	cache, clock := newTestCache(t, source, WithIdleEviction(30*time.Minute))

	cache.GetOrFetch(context.Background(), sym("005930"))
	cache.GetOrFetch(context.Background(), sym("000660"))
	if cache.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cache.Len())
	}

	clock.Advance(31 * time.Minute)
	cache.GetOrFetch(context.Background(), sym("005930")) // touches 005930, sweeps the rest

	if cache.Len() != 1 {
		t.Errorf("Len = %d after idle sweep, want 1", cache.Len())
	}
}

func TestBatchPartialFailure(t *testing.T) {
	source := &fakeSource{
		name: models.SourceNaver,
		current: func(code string) (*models.RawQuote, error) {
			if code == "999999" {
				return nil, models.NewSourceError(models.SourceNaver, models.SourceErrNotFound, errors.New("no such code"))
			}
			return &models.RawQuote{Code: code, Price: 75000, PrevClose: 74000}, nil
		},
	}
	daum := &fakeSource{
		name: models.SourceDaum,
		current: func(code string) (*models.RawQuote, error) {
			return nil, models.NewSourceError(models.SourceDaum, models.SourceErrNotFound, errors.New("no such code"))
		},
	}
	clock := &testClock{at: time.Date(2025, 11, 18, 10, 0, 0, 0, kst)}
	resolver := newTestResolver(source, daum)
	cache := NewCache(resolver, common.NewSilentLogger(), WithClock(clock.Now))

	results := cache.GetOrFetchBatch(context.Background(), []models.Symbol{sym("005930"), sym("999999"), sym("000660")})

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results["005930"].Unavailable() || results["000660"].Unavailable() {
		t.Error("healthy symbols resolved as unavailable")
	}
	if !results["999999"].Unavailable() {
		t.Error("failed symbol must come back with source none")
	}
}

func TestBatchDeduplicatesCodes(t *testing.T) {
	source := okSource()
	cache, _ := newTestCache(t, source)

	results := cache.GetOrFetchBatch(context.Background(), []models.Symbol{sym("005930"), sym("005930"), sym("005930")})

	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
	if source.calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", source.calls())
	}
}

func TestBatchDeadlineReturnsCachedValues(t *testing.T) {
	// The source honors cancellation the way real HTTP clients do: a
	// slow upstream turns into SourceError(timeout) when the batch
	// deadline expires, and the cache falls back to the stale entry.
	slowCtx := func(ctx context.Context) (*models.RawQuote, error) {
		select {
		case <-ctx.Done():
			return nil, models.NewSourceError(models.SourceNaver, models.SourceErrTimeout, ctx.Err())
		case <-time.After(5 * time.Second):
			return nil, models.NewSourceError(models.SourceNaver, models.SourceErrTimeout, errors.New("slow"))
		}
	}
	source := &ctxAwareSource{name: models.SourceNaver, current: slowCtx}
	daum := &fakeSource{name: models.SourceDaum}
	clock := &testClock{at: time.Date(2025, 11, 18, 10, 0, 0, 0, kst)}
	resolver := NewResolver(market.NewClassifier(), market.NewCalendar(),
		[]interfaces.QuoteSource{source, daum}, common.NewSilentLogger())
	cache := NewCache(resolver, common.NewSilentLogger(), WithClock(clock.Now))

	// Seed a settled entry, then expire it so the next fetch goes upstream.
	cache.store("005930", &models.Quote{Code: "005930", CurrentPrice: 75000, SourceUsed: models.SourceNaver}, clock.Now())
	clock.Advance(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan map[string]*models.Quote, 1)
	go func() {
		done <- cache.GetOrFetchBatch(ctx, []models.Symbol{sym("005930")})
	}()

	var results map[string]*models.Quote
	select {
	case results = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("batch blocked past its deadline")
	}

	q := results["005930"]
	if q == nil {
		t.Fatal("missing result for 005930")
	}
	if !q.Stale {
		t.Error("deadline-cut symbol should serve its stale cached value")
	}
	if q.CurrentPrice != 75000 {
		t.Errorf("CurrentPrice = %v, want cached 75000", q.CurrentPrice)
	}
}

func TestCacheDoesNotStoreFailedResolution(t *testing.T) {
	// One batch caller's tight deadline fails a never-cached symbol. The
	// resulting none-quote must not land in the shared cache: the next
	// caller with a sane context goes upstream and gets a real price.
	recovered := make(chan struct{})
	source := &ctxAwareSource{
		name: models.SourceNaver,
		current: func(ctx context.Context) (*models.RawQuote, error) {
			select {
			case <-ctx.Done():
				return nil, models.NewSourceError(models.SourceNaver, models.SourceErrTimeout, ctx.Err())
			case <-recovered:
				return &models.RawQuote{Code: "005930", Price: 75000, PrevClose: 74000}, nil
			}
		},
	}
	daum := &fakeSource{name: models.SourceDaum}
	clock := &testClock{at: time.Date(2025, 11, 18, 10, 0, 0, 0, kst)}
	resolver := NewResolver(market.NewClassifier(), market.NewCalendar(),
		[]interfaces.QuoteSource{source, daum}, common.NewSilentLogger())
	cache := NewCache(resolver, common.NewSilentLogger(), WithClock(clock.Now))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	results := cache.GetOrFetchBatch(ctx, []models.Symbol{sym("005930")})
	if !results["005930"].Unavailable() {
		t.Fatalf("expected unavailable quote under cut deadline, got %+v", results["005930"])
	}

	close(recovered)
	quote := cache.GetOrFetch(context.Background(), sym("005930"))
	if quote.Unavailable() {
		t.Fatal("healthy caller served the earlier failed resolution from cache")
	}
	if quote.CurrentPrice != 75000 {
		t.Errorf("CurrentPrice = %v, want 75000", quote.CurrentPrice)
	}
	if quote.Stale {
		t.Error("re-resolved quote marked stale")
	}
}
