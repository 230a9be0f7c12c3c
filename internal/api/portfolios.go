package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/folioscope/portfolio-chat/internal/backend"
	"github.com/folioscope/portfolio-chat/internal/portfolio"
)

const portfolioNotFound = "Portfolio not found"

type rejectionResponse struct {
	Message     string   `json:"message"`
	TotalWeight *float64 `json:"totalWeight,omitempty"`
}

func (s *Server) listPortfolios(w http.ResponseWriter, r *http.Request) {
	records, err := s.portfolios.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []portfolio.Record{}
	}
	writeJSON(w, records)
}

func (s *Server) getPortfolio(w http.ResponseWriter, r *http.Request) {
	record, err := s.portfolios.Lookup(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, backend.ErrNotFound) {
		writeMessage(w, portfolioNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, record)
}

func (s *Server) createPortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolio.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	record, err := s.portfolios.Submit(r.Context(), req)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSONStatus(w, backend.CreateResponse{
		Success:   true,
		ID:        record.ID,
		Message:   "Portfolio created successfully",
		CreatedAt: record.CreatedAt,
		Data:      record,
	}, http.StatusCreated)
}

func (s *Server) updatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolio.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	record, err := s.portfolios.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, record)
}

func (s *Server) deletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolios.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeBackendError renders the error shapes the portfolio API shares with
// the chat routes that submit through it.
func writeBackendError(w http.ResponseWriter, err error) {
	var rejected *backend.RejectedError
	switch {
	case errors.As(err, &rejected):
		body := rejectionResponse{Message: rejected.Message}
		if rejected.TotalWeight != nil {
			total := rejected.TotalWeight.InexactFloat64()
			body.TotalWeight = &total
		}
		status := rejected.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeJSONStatus(w, body, status)
	case errors.Is(err, backend.ErrNotFound):
		writeMessage(w, portfolioNotFound, http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
