package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/folioapp/folio/internal/models"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// ParseSymbol parses a symbol expression of the form CODE or CODE:CUR
// into a Symbol carrying the declared currency, e.g. "AAPL:USD".
func ParseSymbol(raw string) models.Symbol {
	code, currency, _ := strings.Cut(strings.TrimSpace(raw), ":")
	return models.Symbol{
		Code:     strings.TrimSpace(code),
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
	}
}

// SplitSymbols parses a comma-separated symbols query parameter into a
// trimmed, de-blanked symbol list.
func SplitSymbols(raw string) []models.Symbol {
	parts := strings.Split(raw, ",")
	out := make([]models.Symbol, 0, len(parts))
	for _, p := range parts {
		if sym := ParseSymbol(p); sym.Code != "" {
			out = append(out, sym)
		}
	}
	return out
}

// PathParam extracts a path parameter from the URL path.
// For a pattern like /api/holdings/{code}, calling PathParam(r, "/api/holdings/", "")
// extracts the {code} part.
func PathParam(r *http.Request, prefix, suffix string) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if suffix != "" {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			return rest
		}
		return rest[:idx]
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}
