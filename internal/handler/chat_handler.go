package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/llm"
	"github.com/levelapp/funnel/internal/middleware"
)

// ChatHandler serves the website chat and the admin prompt check.
type ChatHandler struct {
	*BaseHandler
	relay ChatRelay
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(relay ChatRelay, logger *zap.Logger) *ChatHandler {
	if relay == nil {
		panic("relay is required")
	}
	return &ChatHandler{
		BaseHandler: NewBaseHandler(logger),
		relay:       relay,
	}
}

// ChatRequest is a visitor transcript.
type ChatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// ChatTestResponse is the whole answer to an admin test transcript.
type ChatTestResponse struct {
	Answer string `json:"answer"`
}

// RegisterAdminRoutes registers the prompt check route. It must be mounted
// behind the admin session middleware.
func (h *ChatHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/api/admin/chat/test", h.HandleChatTest)
}

// HandleChat streams the answer to a visitor transcript as plain text. Each
// delta is flushed as it arrives. Errors that happen before the first delta
// are answered with a JSON error; later ones end the body early.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	sink := newStreamWriter(w)
	res, err := h.relay.Respond(r.Context(), req.Messages, sink)
	if err != nil {
		if sink.started {
			return
		}
		if errors.Is(err, context.Canceled) || r.Context().Err() != nil {
			middleware.LoggerWithCorrelation(r.Context(), h.logger).Debug("chat canceled by client")
			return
		}
		h.WriteError(w, r, err)
		return
	}

	// An empty answer still gets the streaming headers.
	sink.start()
	middleware.LoggerWithCorrelation(r.Context(), h.logger).Debug("chat stream finished",
		zap.String("outcome", res.Outcome),
		zap.Int("deltas", res.Deltas),
		zap.Duration("duration", res.Duration),
	)
}

// HandleChatTest returns the whole answer to a transcript through the same
// prompt as the website chat.
func (h *ChatHandler) HandleChatTest(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	answer, err := h.relay.Ask(r.Context(), req.Messages)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, ChatTestResponse{Answer: answer})
}

// streamWriter writes answer deltas to the response, sending the headers
// with the first one.
type streamWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	return &streamWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *streamWriter) start() {
	if s.started {
		return
	}
	s.started = true

	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// WriteDelta implements chat.Sink.
func (s *streamWriter) WriteDelta(text string) error {
	s.start()
	if _, err := io.WriteString(s.w, text); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
