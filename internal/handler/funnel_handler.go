package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/domain"
	"github.com/levelapp/funnel/internal/pricing"
	"github.com/levelapp/funnel/internal/service"
)

// FunnelHandler serves the public calculator wizard: estimates, leads and
// the option catalogs.
type FunnelHandler struct {
	*BaseHandler
	leadService LeadService
}

// NewFunnelHandler creates a new FunnelHandler.
func NewFunnelHandler(leads LeadService, logger *zap.Logger) *FunnelHandler {
	if leads == nil {
		panic("leadService is required")
	}
	return &FunnelHandler{
		BaseHandler: NewBaseHandler(logger),
		leadService: leads,
	}
}

// RegisterRoutes registers the public funnel routes on the router.
func (h *FunnelHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/pricing/options", h.HandlePricingOptions)
	r.Post("/api/estimate", h.HandleEstimate)
	r.Post("/api/leads", h.HandleCreateLead)
	r.Patch("/api/leads/{id}/booking", h.HandleUpdateBooking)
}

// RegisterAdminRoutes registers the lead back-office routes. They must be
// mounted behind the admin session middleware.
func (h *FunnelHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/api/admin/leads", h.HandleListLeads)
}

// HandlePricingOptions returns the option catalogs of the wizard and the
// quote builder.
func (h *FunnelHandler) HandlePricingOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	h.WriteJSON(w, r, http.StatusOK, pricing.Options())
}

// HandleEstimate prices a calculator selection.
func (h *FunnelHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var sel domain.Selection
	if err := decodeJSON(r, &sel); err != nil {
		h.WriteError(w, r, err)
		return
	}

	est, err := h.leadService.Estimate(sel)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, est)
}

// CreateLeadResponse is returned when a lead is recorded.
type CreateLeadResponse struct {
	ID       uuid.UUID         `json:"id"`
	Estimate *service.Estimate `json:"estimate"`
}

// HandleCreateLead records a completed wizard.
func (h *FunnelHandler) HandleCreateLead(w http.ResponseWriter, r *http.Request) {
	var sub service.LeadSubmission
	if err := decodeJSON(r, &sub); err != nil {
		h.WriteError(w, r, err)
		return
	}

	lead, est, err := h.leadService.Submit(r.Context(), sub)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusCreated, CreateLeadResponse{ID: lead.ID, Estimate: est})
}

// HandleUpdateBooking records the booking step of a lead.
func (h *FunnelHandler) HandleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	var booking domain.Booking
	if err := decodeJSON(r, &booking); err != nil {
		h.WriteError(w, r, err)
		return
	}

	lead, err := h.leadService.UpdateBooking(r.Context(), id, booking)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, lead)
}

// LeadListResponse is a page of leads.
type LeadListResponse struct {
	Leads  []*domain.Lead `json:"leads"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// HandleListLeads returns leads, newest first.
func (h *FunnelHandler) HandleListLeads(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	leads, err := h.leadService.List(r.Context(), page.Limit, page.Offset)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if leads == nil {
		leads = []*domain.Lead{}
	}
	h.WriteJSON(w, r, http.StatusOK, LeadListResponse{Leads: leads, Limit: page.Limit, Offset: page.Offset})
}
