package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/domain"
)

// QuoteHandler serves the admin quote builder.
type QuoteHandler struct {
	*BaseHandler
	quoteService QuoteService
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(quotes QuoteService, logger *zap.Logger) *QuoteHandler {
	if quotes == nil {
		panic("quoteService is required")
	}
	return &QuoteHandler{
		BaseHandler:  NewBaseHandler(logger),
		quoteService: quotes,
	}
}

// RegisterRoutes registers the quote routes. They must be mounted behind the
// admin session middleware.
func (h *QuoteHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin/quotes", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Post("/price", h.HandlePrice)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
	})
}

// HandlePrice prices a quote selection without saving it. The builder calls
// it on every change.
func (h *QuoteHandler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	var sel domain.QuoteSelection
	if err := decodeJSON(r, &sel); err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, h.quoteService.Price(sel))
}

// HandleCreate saves a new quote.
func (h *QuoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var form domain.QuoteForm
	if err := decodeJSON(r, &form); err != nil {
		h.WriteError(w, r, err)
		return
	}

	quote, err := h.quoteService.Create(r.Context(), form)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusCreated, quote)
}

// HandleUpdate replaces a saved quote.
func (h *QuoteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	var form domain.QuoteForm
	if err := decodeJSON(r, &form); err != nil {
		h.WriteError(w, r, err)
		return
	}

	quote, err := h.quoteService.Update(r.Context(), id, form)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, quote)
}

// HandleGet returns a saved quote.
func (h *QuoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	quote, err := h.quoteService.Get(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, quote)
}

// QuoteListResponse is a page of quotes.
type QuoteListResponse struct {
	Quotes []*domain.Quote `json:"quotes"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// HandleList returns saved quotes, newest first.
func (h *QuoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	quotes, err := h.quoteService.List(r.Context(), page.Limit, page.Offset)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if quotes == nil {
		quotes = []*domain.Quote{}
	}
	h.WriteJSON(w, r, http.StatusOK, QuoteListResponse{Quotes: quotes, Limit: page.Limit, Offset: page.Offset})
}
