package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/folioscope/portfolio-chat/internal/backend"
	"github.com/folioscope/portfolio-chat/internal/chat"
	"github.com/folioscope/portfolio-chat/internal/config"
	"github.com/folioscope/portfolio-chat/internal/events"
	"github.com/folioscope/portfolio-chat/internal/stocks"
	"github.com/folioscope/portfolio-chat/internal/store"
	"github.com/folioscope/portfolio-chat/internal/vault"
)

type Server struct {
	store      store.Store
	broker     Broker
	portfolios *backend.Service
	engine     *chat.Engine
	vault      *vault.Vault
	stocks     *stocks.Catalog
	cfg        config.Config
}

type Broker interface {
	Publish(event events.ConversationEvent)
	Subscribe(ctx context.Context, conversationID string) <-chan events.ConversationEvent
}

// Services are the components the HTTP surface exposes. Stocks defaults to
// the built-in catalog.
type Services struct {
	Store      store.Store
	Broker     Broker
	Portfolios *backend.Service
	Engine     *chat.Engine
	Vault      *vault.Vault
	Stocks     *stocks.Catalog
}

func NewServer(services Services, cfg config.Config) *Server {
	catalog := services.Stocks
	if catalog == nil {
		catalog = stocks.Default()
	}
	return &Server{
		store:      services.Store,
		broker:     services.Broker,
		portfolios: services.Portfolios,
		engine:     services.Engine,
		vault:      services.Vault,
		stocks:     catalog,
		cfg:        cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/api/portfolios", s.listPortfolios)
	r.Post("/api/portfolios", s.createPortfolio)
	r.Get("/api/portfolios/{id}", s.getPortfolio)
	r.Put("/api/portfolios/{id}", s.updatePortfolio)
	r.Delete("/api/portfolios/{id}", s.deletePortfolio)
	r.Get("/api/stocks/available", s.listStocks)
	r.Get("/api/stocks/search", s.searchStocks)
	r.Get("/api/conversations", s.listConversations)
	r.Post("/api/conversations", s.createConversation)
	r.Get("/api/conversations/{id}", s.getConversation)
	r.Delete("/api/conversations/{id}", s.deleteConversation)
	r.Post("/api/conversations/{id}/activate", s.activateConversation)
	r.Get("/api/conversations/{id}/events", s.streamEvents)
	r.Post("/api/chat/messages", s.sendMessage)
	r.Get("/api/chat/draft", s.getDraft)
	r.Post("/api/chat/draft/submit", s.submitDraft)
	r.Get("/api/chat/manual", s.getManual)
	r.Put("/api/chat/manual", s.updateManual)
	r.Post("/api/chat/manual/rows", s.addManualRow)
	r.Delete("/api/chat/manual/rows/{index}", s.removeManualRow)
	r.Post("/api/chat/manual/submit", s.submitManual)
	r.Get("/api/chat/portfolio", s.activePortfolio)
	r.Get("/api/chat/recent", s.recentPortfolios)
	r.Get("/api/credential", s.getCredential)
	r.Put("/api/credential", s.putCredential)
	r.Delete("/api/credential", s.deleteCredential)
	r.Get("/api/settings/llm", s.getLLMSettings)
	r.Get("/api/settings/prompt", s.getPromptSettings)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && strings.HasSuffix(cleanPath, "/events") {
		return true
	}
	if method == http.MethodGet && (cleanPath == "/health" || cleanPath == "/ready" || strings.HasPrefix(cleanPath, "/api/settings/")) {
		return true
	}
	if method == http.MethodOptions {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.ListPortfolios(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	switch {
	case s.vault == nil:
		subsystems["credential"] = subsystemStatus{Status: "skipped"}
	case s.vault.CheckExpiry(ctx):
		subsystems["credential"] = subsystemStatus{Status: "ok"}
	default:
		subsystems["credential"] = subsystemStatus{Status: "missing"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSON(w http.ResponseWriter, value any) {
	writeJSONStatus(w, value, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, messageResponse{Message: message}, statusCode)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if conversationID != events.AllConversations {
		if _, err := s.engine.Conversation(conversationID); errors.Is(err, chat.ErrConversationNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	afterSeq := parseAfterSeq(conversationID, r)
	eventsChan := s.broker.Subscribe(ctx, conversationID)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			if event.Seq <= afterSeq {
				continue
			}
			sendSSE(w, conversationID, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, streamID string, event events.ConversationEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", streamID, event.Seq)
	fmt.Fprint(w, "event: conversation_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// parseAfterSeq lets a reconnecting client skip events it has already seen.
func parseAfterSeq(streamID string, r *http.Request) int64 {
	afterParam := strings.TrimSpace(r.URL.Query().Get("after_seq"))
	if afterParam != "" {
		if parsed, err := strconv.ParseInt(afterParam, 10, 64); err == nil {
			return parsed
		}
	}
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		return 0
	}
	prefix, seqText, found := strings.Cut(lastEventID, ":")
	if !found || prefix != streamID {
		return 0
	}
	seq, err := strconv.ParseInt(seqText, 10, 64)
	if err != nil {
		return 0
	}
	return seq
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
