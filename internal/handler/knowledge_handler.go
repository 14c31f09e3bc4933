package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/service"
)

// KnowledgeHandler serves the knowledge base CMS.
type KnowledgeHandler struct {
	*BaseHandler
	knowledge KnowledgeService
}

// NewKnowledgeHandler creates a new KnowledgeHandler.
func NewKnowledgeHandler(knowledge KnowledgeService, logger *zap.Logger) *KnowledgeHandler {
	if knowledge == nil {
		panic("knowledgeService is required")
	}
	return &KnowledgeHandler{
		BaseHandler: NewBaseHandler(logger),
		knowledge:   knowledge,
	}
}

// RegisterRoutes registers the CMS routes. They must be mounted behind the
// admin session middleware.
func (h *KnowledgeHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin/knowledge", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)

		r.Get("/versions", h.HandleListVersions)
		r.Post("/versions", h.HandleCreateVersion)
		r.Put("/versions", h.HandleRestoreVersion)

		r.Get("/preview", h.HandlePreview)
		r.Post("/import", h.HandleImport)

		r.Get("/system-prompt", h.HandleGetSystemPrompt)
		r.Put("/system-prompt", h.HandleSetSystemPrompt)

		r.Get("/{section}", h.HandleGet)
		r.Put("/{section}", h.HandleUpdate)
		r.Delete("/{section}", h.HandleDelete)
	})
}

// KnowledgeListResponse lists the entries with the section catalog.
type KnowledgeListResponse struct {
	Entries  []*domain.KnowledgeEntry `json:"entries"`
	Sections []domain.SectionInfo     `json:"sections"`
}

// HandleList returns every entry, active or not.
func (h *KnowledgeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.knowledge.List(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*domain.KnowledgeEntry{}
	}
	h.WriteJSON(w, r, http.StatusOK, KnowledgeListResponse{Entries: entries, Sections: h.knowledge.Sections()})
}

// CreateKnowledgeRequest is the body of a create request.
type CreateKnowledgeRequest struct {
	Section  domain.Section  `json:"section"`
	Title    string          `json:"title"`
	Content  json.RawMessage `json:"content"`
	IsActive *bool           `json:"is_active"`
	Priority int             `json:"priority"`
}

// HandleCreate stores the entry of a section that has none yet.
func (h *KnowledgeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateKnowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if req.Section == "" {
		h.WriteError(w, r, apperrors.MissingField("section"))
		return
	}
	if len(req.Content) == 0 {
		h.WriteError(w, r, apperrors.MissingField("content"))
		return
	}

	content, err := decodeContent(req.Section, req.Content)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	entry := domain.NewKnowledgeEntry(req.Title, content, req.Priority)
	if req.IsActive != nil {
		entry.IsActive = *req.IsActive
	}

	if err := h.knowledge.Create(r.Context(), entry); err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusCreated, entry)
}

// HandleGet returns the entry of a section.
func (h *KnowledgeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.knowledge.Get(r.Context(), domain.Section(chi.URLParam(r, "section")))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, entry)
}

// UpdateKnowledgeRequest is a partial update. Omitted fields are unchanged.
type UpdateKnowledgeRequest struct {
	Title    *string         `json:"title"`
	Content  json.RawMessage `json:"content"`
	IsActive *bool           `json:"is_active"`
	Priority *int            `json:"priority"`
}

// HandleUpdate applies a partial update to the entry of a section.
func (h *KnowledgeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	section := domain.Section(chi.URLParam(r, "section"))

	var req UpdateKnowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	update := domain.KnowledgeUpdate{
		Title:    req.Title,
		IsActive: req.IsActive,
		Priority: req.Priority,
	}
	if len(req.Content) > 0 && string(req.Content) != "null" {
		content, err := decodeContent(section, req.Content)
		if err != nil {
			h.WriteError(w, r, err)
			return
		}
		update.Content = content
	}

	entry, err := h.knowledge.Update(r.Context(), section, update)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, entry)
}

// HandleDelete removes the entry of a section and its history.
func (h *KnowledgeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.knowledge.Delete(r.Context(), domain.Section(chi.URLParam(r, "section"))); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListVersions returns the history of an entry, newest first.
func (h *KnowledgeHandler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID("knowledge_id", r.URL.Query().Get("knowledge_id"))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	versions, err := h.knowledge.ListVersions(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if versions == nil {
		versions = []*domain.KnowledgeVersion{}
	}
	h.WriteJSON(w, r, http.StatusOK, versions)
}

// CreateVersionRequest asks for a snapshot of an entry.
type CreateVersionRequest struct {
	KnowledgeID string `json:"knowledge_id"`
	CreatedBy   string `json:"created_by"`
}

// HandleCreateVersion snapshots the current content of an entry.
func (h *KnowledgeHandler) HandleCreateVersion(w http.ResponseWriter, r *http.Request) {
	var req CreateVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	id, err := parseUUID("knowledge_id", req.KnowledgeID)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	version, err := h.knowledge.CreateVersion(r.Context(), id, req.CreatedBy)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusCreated, version)
}

// RestoreVersionRequest names the version to restore.
type RestoreVersionRequest struct {
	VersionID string `json:"version_id"`
}

// HandleRestoreVersion writes a version back onto its entry.
func (h *KnowledgeHandler) HandleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	var req RestoreVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	id, err := parseUUID("version_id", req.VersionID)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	entry, err := h.knowledge.RestoreVersion(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, entry)
}

// HandlePreview returns the compiled system prompt.
func (h *KnowledgeHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, r, http.StatusOK, h.knowledge.Preview(r.Context()))
}

// ImportResponse reports a seeding run.
type ImportResponse struct {
	Imported int                    `json:"imported"`
	Results  []service.ImportResult `json:"results"`
}

// HandleImport seeds every section with its default content. Sections that
// failed are listed with their error; the request itself still succeeds.
func (h *KnowledgeHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	results, err := h.knowledge.Import(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	imported := 0
	for _, res := range results {
		if res.Success {
			imported++
		}
	}
	h.WriteJSON(w, r, http.StatusOK, ImportResponse{Imported: imported, Results: results})
}

// HandleGetSystemPrompt returns the chat persona.
func (h *KnowledgeHandler) HandleGetSystemPrompt(w http.ResponseWriter, r *http.Request) {
	config, err := h.knowledge.GetSystemPrompt(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, config)
}

// HandleSetSystemPrompt replaces the chat persona.
func (h *KnowledgeHandler) HandleSetSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var config domain.SystemPromptConfig
	if err := decodeJSON(r, &config); err != nil {
		h.WriteError(w, r, err)
		return
	}

	if err := h.knowledge.SetSystemPrompt(r.Context(), config); err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, config)
}

func decodeContent(section domain.Section, raw json.RawMessage) (domain.KnowledgeContent, error) {
	if !section.Valid() {
		return nil, apperrors.InvalidFormat("section", "a known section")
	}
	content, err := domain.DecodeContent(section, raw)
	if err != nil {
		return nil, apperrors.Wrap(err, "KnowledgeHandler.decodeContent", apperrors.CodeInvalidFormat,
			"content does not match section "+string(section))
	}
	return content, nil
}
