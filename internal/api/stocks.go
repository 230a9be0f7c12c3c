package api

import (
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) listStocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.stocks.All())
}

func (s *Server) searchStocks(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.StockSearchLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	writeJSON(w, s.stocks.Search(r.URL.Query().Get("q"), limit))
}
