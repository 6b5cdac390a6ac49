package server

import "net/http"

// registerRoutes attaches all REST endpoints to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	h := newHandlers(s.app)

	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/version", h.handleVersion)

	mux.HandleFunc("/api/quotes", h.handleQuotes)
	mux.HandleFunc("/api/quotes/refresh", h.handleQuotesRefresh)

	mux.HandleFunc("/api/portfolio/summary", h.handlePortfolioSummary)
	mux.HandleFunc("/api/portfolio/risk", h.handlePortfolioRisk)

	mux.HandleFunc("/api/holdings", h.handleHoldings)
	mux.HandleFunc("/api/holdings/", h.handleHoldingByCode)
}
