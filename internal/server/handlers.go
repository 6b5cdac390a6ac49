package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/folioapp/folio/internal/app"
	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/models"
)

// DefaultAccount is used when a request names no account.
const DefaultAccount = "main"

// handlers holds the request handlers and their shared state.
type handlers struct {
	app *app.App
	now func() time.Time

	// lastRefresh enforces the per-symbol forced-refresh cooldown. The
	// cache itself has no concept of who is asking; the throttle lives
	// here at the caller layer.
	refreshMu   sync.Mutex
	lastRefresh map[string]time.Time
}

func newHandlers(a *app.App) *handlers {
	return &handlers{
		app:         a,
		now:         time.Now,
		lastRefresh: make(map[string]time.Time),
	}
}

func accountFrom(r *http.Request) string {
	if account := r.URL.Query().Get("account"); account != "" {
		return account
	}
	return DefaultAccount
}

// handleHealth responds to GET/HEAD /api/health.
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(h.app.StartupTime).Round(time.Second).String(),
		"version": common.GetVersion(),
	})
}

// handleVersion responds to GET /api/version.
func (h *handlers) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleQuotes resolves a comma-separated symbols list. Each entry is
// a code with an optional declared currency suffix.
// GET /api/quotes?symbols=005930,AAPL:USD
func (h *handlers) handleQuotes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	symbols := SplitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		WriteError(w, http.StatusBadRequest, "symbols parameter is required")
		return
	}

	quotes := h.app.QuoteService.GetQuotes(r.Context(), symbols)
	WriteJSON(w, http.StatusOK, quotes)
}

type refreshRequest struct {
	Symbols []string `json:"symbols"`
}

type refreshResponse struct {
	Refreshed []string                 `json:"refreshed"`
	Throttled []string                 `json:"throttled"`
	Quotes    map[string]*models.Quote `json:"quotes"`
}

// handleQuotesRefresh forces a refetch of the given symbols, subject to
// a per-symbol cooldown window.
// POST /api/quotes/refresh {"symbols": ["005930"]}
func (h *handlers) handleQuotesRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req refreshRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Symbols) == 0 {
		WriteError(w, http.StatusBadRequest, "symbols list is required")
		return
	}

	cooldown := h.app.Config.Quotes.GetRefreshCooldown()
	now := h.now()

	resp := refreshResponse{Refreshed: []string{}, Throttled: []string{}}
	fetch := make([]models.Symbol, 0, len(req.Symbols))
	h.refreshMu.Lock()
	for _, raw := range req.Symbols {
		sym := ParseSymbol(raw)
		if sym.Code == "" {
			continue
		}
		fetch = append(fetch, sym)
		if last, ok := h.lastRefresh[sym.Code]; ok && now.Sub(last) < cooldown {
			resp.Throttled = append(resp.Throttled, sym.Code)
			continue
		}
		h.lastRefresh[sym.Code] = now
		h.app.QuoteService.Invalidate(sym.Code)
		resp.Refreshed = append(resp.Refreshed, sym.Code)
	}
	h.refreshMu.Unlock()

	resp.Quotes = h.app.QuoteService.GetQuotes(r.Context(), fetch)

	WriteJSON(w, http.StatusOK, resp)
}

// handlePortfolioSummary valuates the account's holdings.
// GET /api/portfolio/summary?account=main
func (h *handlers) handlePortfolioSummary(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	valuations, summary, err := h.app.PortfolioService.GetSummary(r.Context(), accountFrom(r))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"summary":    summary,
		"valuations": valuations,
	})
}

// handlePortfolioRisk derives risk metrics for the account.
// GET /api/portfolio/risk?account=main
func (h *handlers) handlePortfolioRisk(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	metrics, err := h.app.PortfolioService.GetRiskMetrics(r.Context(), accountFrom(r))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, metrics)
}

// handleHoldings lists or upserts holdings.
// GET /api/holdings?account=main
// POST /api/holdings {"code": "005930", "quantity": 10, ...}
func (h *handlers) handleHoldings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		holdings, err := h.app.Storage.HoldingStorage().ListHoldings(r.Context(), accountFrom(r))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, holdings)

	case http.MethodPost:
		var holding models.Holding
		if !DecodeJSON(w, r, &holding) {
			return
		}
		if holding.AccountID == "" {
			holding.AccountID = DefaultAccount
		}
		if holding.Code == "" || holding.Quantity <= 0 {
			WriteError(w, http.StatusBadRequest, "code and positive quantity are required")
			return
		}
		if holding.Currency == "" {
			holding.Currency = h.app.Config.ReportingCurrency
		}
		if err := h.app.Storage.HoldingStorage().SaveHolding(r.Context(), &holding); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, holding)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleHoldingByCode deletes one holding.
// DELETE /api/holdings/{code}?account=main
func (h *handlers) handleHoldingByCode(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	code := PathParam(r, "/api/holdings/", "")
	if code == "" {
		WriteError(w, http.StatusBadRequest, "holding code is required")
		return
	}

	if err := h.app.Storage.HoldingStorage().DeleteHolding(r.Context(), accountFrom(r), code); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.app.QuoteService.Invalidate(code)
	WriteJSON(w, http.StatusOK, map[string]string{"deleted": code})
}
