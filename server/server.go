// Package server exposes the conversation loop over HTTP: a synchronous chat
// endpoint, a server-sent-events stream, a health probe and the prometheus
// scrape endpoint. The server holds no session state; clients resubmit the
// full history on every request.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/carelake/clinical-assistant/agent/agents/supervisor"
	contractx "github.com/carelake/clinical-assistant/agent/contract"
)

// Runner drives one conversation; satisfied by *supervisor.Supervisor.
type Runner interface {
	Run(ctx context.Context, history []contractx.Message) ([]contractx.Message, error)
	Stream(ctx context.Context, history []contractx.Message) <-chan supervisor.StreamEvent
}

type Config struct {
	Addr            string        `split_words:"true" default:":8080"`
	ShutdownTimeout time.Duration `split_words:"true" default:"15s"`
}

type ChatRequest struct {
	Messages []contractx.Message `json:"messages"`
}

type ChatResponse struct {
	Messages []contractx.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(runner Runner) http.Handler {
	s := &server{runner: runner}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/chat", s.handleChat)
	r.Post("/v1/chat/stream", s.handleChatStream)
	return r
}

type server struct {
	runner Runner
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	history, ok := decodeHistory(w, r)
	if !ok {
		return
	}

	messages, err := s.runner.Run(r.Context(), history)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Messages: messages})
}

// handleChatStream emits one "transition" SSE event per dispatched or
// synthesized message, then a terminal "done" or "error" event.
func (s *server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	history, ok := decodeHistory(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range s.runner.Stream(r.Context(), history) {
		if ev.Err != nil {
			writeSSE(w, "error", errorResponse{Error: ev.Err.Error()})
			flusher.Flush()
			return
		}
		writeSSE(w, "transition", ev.Event)
		flusher.Flush()
	}
	writeSSE(w, "done", struct{}{})
	flusher.Flush()
}

func decodeHistory(w http.ResponseWriter, r *http.Request) ([]contractx.Message, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return nil, false
	}
	return req.Messages, true
}

func writeRunError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, contractx.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, contractx.ErrRoutingUnavailable):
		status = http.StatusBadGateway
	}
	log.Error().Err(err).Int("status", status).Msg("chat request failed")
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeSSE(w http.ResponseWriter, event string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("encode sse event")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests within the configured shutdown timeout.
func Serve(ctx context.Context, cfg Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
