package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dsampson94/community-recruit/internal/apperror"
	"github.com/dsampson94/community-recruit/internal/service"
)

// EntityHandler exposes CRUD for the referenced Skill/Project/Event
// records. The {kind} route segment (skills/projects/events) selects the
// record kind, so one handler serves all three collections.
type EntityHandler struct {
	entities *service.EntityService
	logger   *slog.Logger
}

// NewEntityHandler creates an EntityHandler.
func NewEntityHandler(entities *service.EntityService, logger *slog.Logger) *EntityHandler {
	return &EntityHandler{entities: entities, logger: logger}
}

type createEntityRequest struct {
	Name string `json:"name"`
}

// HandleCreate creates an entity.
//
// HTTP: POST /api/{kind} with {"name": "..."} → 201, 400.
func (h *EntityHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req createEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	entity, err := h.entities.Create(r.Context(), kind, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entity)
}

// HandleGet returns one entity.
//
// HTTP: GET /api/{kind}/{id} → 200, 404.
func (h *EntityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	entity, err := h.entities.GetByID(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// HandleList returns entities of one kind.
//
// HTTP: GET /api/{kind}?limit=20&offset=0
func (h *EntityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entities, err := h.entities.List(r.Context(), kind, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

// HandleDelete removes an entity.
//
// HTTP: DELETE /api/{kind}/{id} → 204, 404, 409 while still referenced.
func (h *EntityHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.entities.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
