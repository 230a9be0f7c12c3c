package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/folioscope/portfolio-chat/internal/chat"
	"github.com/folioscope/portfolio-chat/internal/portfolio"
)

type conversationsResponse struct {
	Conversations        []chat.Summary `json:"conversations"`
	ActiveConversationID string         `json:"active_conversation_id"`
}

type activeResponse struct {
	ActiveConversationID string `json:"active_conversation_id"`
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, conversationsResponse{
		Conversations:        s.engine.Conversations(),
		ActiveConversationID: s.engine.Active(),
	})
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	id := s.engine.Create(r.Context())
	writeJSONStatus(w, activeResponse{ActiveConversationID: id}, http.StatusCreated)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.engine.Conversation(chi.URLParam(r, "id"))
	if err != nil {
		writeConversationError(w, err)
		return
	}
	writeJSON(w, conv)
}

func (s *Server) activateConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.Switch(r.Context(), id); err != nil {
		writeConversationError(w, err)
		return
	}
	writeJSON(w, activeResponse{ActiveConversationID: id})
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	active, err := s.engine.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeConversationError(w, err)
		return
	}
	writeJSON(w, activeResponse{ActiveConversationID: active})
}

func writeConversationError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrConversationNotFound) {
		writeMessage(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	result, err := s.engine.Send(r.Context(), req.Content)
	if errors.Is(err, chat.ErrEmptyMessage) {
		writeMessage(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

type draftResponse struct {
	Draft *portfolio.Portfolio `json:"draft"`
}

func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, draftResponse{Draft: s.engine.Draft()})
}

func (s *Server) submitDraft(w http.ResponseWriter, r *http.Request) {
	record, err := s.engine.SubmitDraft(r.Context())
	if errors.Is(err, chat.ErrNoDraft) {
		writeMessage(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSONStatus(w, record, http.StatusCreated)
}

type manualResponse struct {
	Name  string             `json:"name"`
	Rows  []portfolio.Ticker `json:"rows"`
	Total float64            `json:"total"`
}

func toManualResponse(form portfolio.ManualForm) manualResponse {
	return manualResponse{Name: form.Name, Rows: form.Rows, Total: form.Total()}
}

type manualRequest struct {
	Name string             `json:"name"`
	Rows []portfolio.Ticker `json:"rows"`
}

func (s *Server) getManual(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, toManualResponse(s.engine.EditManual(nil)))
}

// updateManual replaces the form's rows. Weights go through SetWeight so
// they are clamped and rounded like interactive edits.
func (s *Server) updateManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	form := s.engine.EditManual(func(form *portfolio.ManualForm) {
		if name := strings.TrimSpace(req.Name); name != "" {
			form.Name = name
		}
		if req.Rows == nil {
			return
		}
		form.Rows = make([]portfolio.Ticker, len(req.Rows))
		for i, row := range req.Rows {
			form.SetSymbol(i, strings.ToUpper(strings.TrimSpace(row.Symbol)))
			form.SetWeight(i, row.Weight)
		}
	})
	writeJSON(w, toManualResponse(form))
}

type addRowRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) addManualRow(w http.ResponseWriter, r *http.Request) {
	var req addRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	form := s.engine.EditManual(func(form *portfolio.ManualForm) {
		form.AddRow(symbol)
	})
	writeJSON(w, toManualResponse(form))
}

func (s *Server) removeManualRow(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid row index", http.StatusBadRequest)
		return
	}
	form := s.engine.EditManual(func(form *portfolio.ManualForm) {
		form.RemoveRow(index)
	})
	writeJSON(w, toManualResponse(form))
}

func (s *Server) submitManual(w http.ResponseWriter, r *http.Request) {
	record, err := s.engine.SubmitManual(r.Context())
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSONStatus(w, record, http.StatusCreated)
}

func (s *Server) activePortfolio(w http.ResponseWriter, r *http.Request) {
	record, err := s.engine.ActivePortfolio(r.Context())
	if err != nil && !errors.Is(err, chat.ErrPortfolioNotFound) {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if record == nil {
		writeMessage(w, portfolioNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, record)
}

func (s *Server) recentPortfolios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Recent())
}

// writeSubmitError separates local validation failures from what the
// backend said about the submission.
func writeSubmitError(w http.ResponseWriter, err error) {
	var validation *portfolio.ValidationError
	if errors.As(err, &validation) {
		body := rejectionResponse{Message: validation.Error()}
		if errors.Is(err, portfolio.ErrWeightSumAbnormal) {
			total := validation.Sum
			body.TotalWeight = &total
		}
		writeJSONStatus(w, body, http.StatusBadRequest)
		return
	}
	writeBackendError(w, err)
}
