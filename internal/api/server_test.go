package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/folioscope/portfolio-chat/internal/config"
	"github.com/folioscope/portfolio-chat/internal/events"
	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/store/memory"
)

func TestNewServer(t *testing.T) {
	server := NewServer(Services{Store: &MockStore{}, Broker: &MockBroker{}}, config.Config{})
	require.NotNil(t, server)
	require.NotNil(t, server.Router())
	require.NotNil(t, server.stocks)
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, &MockStore{}, &MockBroker{}, config.Config{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "ok", payload["status"])
}

func TestReady(t *testing.T) {
	t.Run("ready when store healthy", func(t *testing.T) {
		storeMock := &MockStore{}
		storeMock.On("ListPortfolios", mock.Anything).Return([]portfolio.Record{}, nil).Once()

		server := newTestServer(t, storeMock, &MockBroker{}, config.Config{})
		defer server.Close()

		resp, err := http.Get(server.URL + "/ready")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var payload readinessResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		require.Equal(t, "ok", payload.Status)
		require.Equal(t, "ok", payload.Subsystems["store"].Status)
		require.Equal(t, "skipped", payload.Subsystems["credential"].Status)
		storeMock.AssertExpectations(t)
	})

	t.Run("degraded when store unavailable", func(t *testing.T) {
		storeMock := &MockStore{}
		storeMock.On("ListPortfolios", mock.Anything).Return(nil, errors.New("db unavailable")).Once()

		server := newTestServer(t, storeMock, &MockBroker{}, config.Config{})
		defer server.Close()

		resp, err := http.Get(server.URL + "/ready")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var payload readinessResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		require.Equal(t, "degraded", payload.Status)
		require.Equal(t, "error", payload.Subsystems["store"].Status)
		require.Equal(t, "db unavailable", payload.Subsystems["store"].Error)
		storeMock.AssertExpectations(t)
	})

	t.Run("reports missing credential without degrading", func(t *testing.T) {
		server, _ := newMemoryServer(t, config.Config{})

		resp, err := http.Get(server.URL + "/ready")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var payload readinessResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		require.Equal(t, "missing", payload.Subsystems["credential"].Status)
	})
}

func TestStreamEvents(t *testing.T) {
	t.Run("stream", func(t *testing.T) {
		broker := events.NewBroker()
		services := testServices(t, memory.New(), broker)
		conversationID := services.Engine.Create(context.Background())
		server := httptest.NewServer(NewServer(services, config.Config{}).Router())
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/conversations/"+conversationID+"/events", nil)
		require.NoError(t, err)

		client := &http.Client{Timeout: time.Second}
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		go func() {
			time.Sleep(20 * time.Millisecond)
			broker.Publish(events.ConversationEvent{ConversationID: "other", Type: events.TypeMessageAppended, Payload: map[string]any{"content": "elsewhere"}})
			broker.Publish(events.ConversationEvent{ConversationID: conversationID, Type: events.TypeDraftUpdated, Payload: map[string]any{"content": "mine"}})
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		body, err := io.ReadAll(resp.Body)
		if err != nil && !errors.Is(err, context.Canceled) {
			require.NoError(t, err)
		}
		text := string(body)
		require.Contains(t, text, "event: conversation_event")
		require.Contains(t, text, events.TypeDraftUpdated)
		require.Contains(t, text, "mine")
		require.NotContains(t, text, "elsewhere")
	})

	t.Run("unknown conversation", func(t *testing.T) {
		server, _ := newMemoryServer(t, config.Config{})

		resp, err := http.Get(server.URL + "/api/conversations/conv-missing/events")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("no flusher", func(t *testing.T) {
		services := testServices(t, memory.New(), events.NewBroker())
		req := httptest.NewRequest(http.MethodGet, "/api/conversations/*/events", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", events.AllConversations)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		w := &noFlushWriter{}

		server := NewServer(services, config.Config{})
		server.streamEvents(w, req)

		require.Equal(t, http.StatusInternalServerError, w.status)
	})

	t.Run("closed channel", func(t *testing.T) {
		brokerMock := &MockBroker{}
		ch := make(chan events.ConversationEvent)
		close(ch)
		brokerMock.On("Subscribe", mock.Anything, events.AllConversations).Return(ch).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/conversations/*/events", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", events.AllConversations)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		w := httptest.NewRecorder()

		server := NewServer(Services{Store: &MockStore{}, Broker: brokerMock}, config.Config{})
		server.streamEvents(w, req)

		require.Contains(t, w.Body.String(), ": connected")
		brokerMock.AssertExpectations(t)
	})

	t.Run("skips events already seen", func(t *testing.T) {
		brokerMock := &MockBroker{}
		ch := make(chan events.ConversationEvent, 2)
		ch <- events.ConversationEvent{ConversationID: "c1", Seq: 3, Type: "message.appended", Payload: map[string]any{"content": "old"}}
		ch <- events.ConversationEvent{ConversationID: "c1", Seq: 4, Type: "message.appended", Payload: map[string]any{"content": "new"}}
		close(ch)
		brokerMock.On("Subscribe", mock.Anything, events.AllConversations).Return(ch).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/conversations/*/events?after_seq=3", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", events.AllConversations)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		w := httptest.NewRecorder()

		server := NewServer(Services{Store: &MockStore{}, Broker: brokerMock}, config.Config{})
		server.streamEvents(w, req)

		require.NotContains(t, w.Body.String(), "old")
		require.Contains(t, w.Body.String(), "id: *:4")
	})
}

func TestCORSMiddleware(t *testing.T) {
	server := newTestServer(t, &MockStore{}, &MockBroker{}, config.Config{})
	defer server.Close()

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/portfolios", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "OPTIONS")
}

func TestShouldSuppressRequestLog(t *testing.T) {
	require.True(t, shouldSuppressRequestLog(http.MethodGet, "/api/conversations/c1/events"))
	require.True(t, shouldSuppressRequestLog(http.MethodGet, "/health"))
	require.True(t, shouldSuppressRequestLog(http.MethodGet, "/api/settings/llm"))
	require.True(t, shouldSuppressRequestLog(http.MethodOptions, "/api/chat/messages"))
	require.False(t, shouldSuppressRequestLog(http.MethodPost, "/api/chat/messages"))
	require.False(t, shouldSuppressRequestLog(http.MethodGet, "/api/portfolios"))
}

func TestParseAfterSeq(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/c1/events?after_seq=9", nil)
	require.Equal(t, int64(9), parseAfterSeq("c1", req))

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/c1/events", nil)
	req.Header.Set("Last-Event-ID", "c1:12")
	require.Equal(t, int64(12), parseAfterSeq("c1", req))

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/c1/events", nil)
	req.Header.Set("Last-Event-ID", "other:12")
	require.Equal(t, int64(0), parseAfterSeq("c1", req))

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/c1/events", nil)
	req.Header.Set("Last-Event-ID", "bad")
	require.Equal(t, int64(0), parseAfterSeq("c1", req))

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/c1/events", nil)
	req.Header.Set("Last-Event-ID", "c1:abc")
	require.Equal(t, int64(0), parseAfterSeq("c1", req))

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/c1/events?after_seq=bad", nil)
	require.Equal(t, int64(0), parseAfterSeq("c1", req))
}

func TestStart(t *testing.T) {
	server := NewServer(Services{Store: &MockStore{}, Broker: &MockBroker{}}, config.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	result := make(chan error, 1)
	go func() {
		result <- server.Start(ctx, addr)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err = <-result
	require.Error(t, err)
}

func TestSendSSE(t *testing.T) {
	buf := &bytes.Buffer{}
	w := bufio.NewWriter(buf)

	writer := &bufferWriter{Writer: w, header: http.Header{}}
	sendSSE(writer, "c1", events.ConversationEvent{ConversationID: "c1", Seq: 5, Type: events.TypeMessageAppended})
	w.Flush()

	text := buf.String()
	require.Contains(t, text, "id: c1:5")
	require.Contains(t, text, "event: conversation_event")
	require.Contains(t, text, events.TypeMessageAppended)
}

type noFlushWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *noFlushWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *noFlushWriter) WriteHeader(status int) {
	w.status = status
}

func (w *noFlushWriter) Write(data []byte) (int, error) {
	return w.body.Write(data)
}

type bufferWriter struct {
	*bufio.Writer
	header http.Header
}

func (w *bufferWriter) Header() http.Header {
	return w.header
}

func (w *bufferWriter) WriteHeader(statusCode int) {
}
