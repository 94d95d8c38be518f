package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dsampson94/community-recruit/internal/apperror"
	"github.com/dsampson94/community-recruit/internal/auth"
	"github.com/dsampson94/community-recruit/internal/model"
	"github.com/dsampson94/community-recruit/internal/service"
)

// UserHandler exposes profile CRUD and reference management.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// createUserRequest is the POST /api/users body.
type createUserRequest struct {
	Username         string   `json:"username"`
	Email            string   `json:"email"`
	Password         string   `json:"password"`
	FullName         string   `json:"fullName"`
	Bio              string   `json:"bio"`
	Location         string   `json:"location"`
	GitContributions int      `json:"gitContributions"`
	HoursWorked      float64  `json:"hoursWorked"`
	Skills           []string `json:"skills"`
	Projects         []string `json:"projects"`
	EventsAttended   []string `json:"eventsAttended"`
}

// HandleCreate registers a new user.
//
// HTTP: POST /api/users → 201, 400 on validation failure, 409 on a
// username/email conflict. The password never appears in the response.
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.users.Create(r.Context(), service.CreateUserInput{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		FullName:         req.FullName,
		Bio:              req.Bio,
		Location:         req.Location,
		GitContributions: req.GitContributions,
		HoursWorked:      req.HoursWorked,
		Skills:           req.Skills,
		Projects:         req.Projects,
		EventsAttended:   req.EventsAttended,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleGet returns a single user.
//
// HTTP: GET /api/users/{id} → 200, 404.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleList returns users with pagination.
//
// HTTP: GET /api/users?limit=20&offset=0
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleUpdate applies a partial update to the acting user's own profile.
//
// HTTP: PATCH /api/users/{id} → 200, 400, 403 (not the acting user), 404,
// 409 on a uniqueness conflict.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.actingUserIs(w, r, id) {
		return
	}

	var patch service.UpdateUserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.users.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDelete removes the acting user's own account.
//
// HTTP: DELETE /api/users/{id} → 204, 403, 404.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.actingUserIs(w, r, id) {
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addReferenceRequest is the body for attaching an entity.
type addReferenceRequest struct {
	EntityID string `json:"entityId"`
}

// HandleAddReference attaches a skill/project/event to the acting user.
//
// HTTP: POST /api/users/{id}/{kind} with {"entityId": "..."} → 200 with the
// updated user, 404 if either endpoint is unknown. Re-adding a present
// reference is a no-op.
func (h *UserHandler) HandleAddReference(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.actingUserIs(w, r, id) {
		return
	}

	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req addReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.users.AddReference(r.Context(), id, kind, req.EntityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleRemoveReference detaches an entity from the acting user.
//
// HTTP: DELETE /api/users/{id}/{kind}/{entityID} → 200 with the updated user.
func (h *UserHandler) HandleRemoveReference(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.actingUserIs(w, r, id) {
		return
	}

	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.RemoveReference(r.Context(), id, kind, chi.URLParam(r, "entityID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// actingUserIs enforces that the authenticated caller is the user named in
// the path. Writes to someone else's profile are forbidden.
func (h *UserHandler) actingUserIs(w http.ResponseWriter, r *http.Request, id string) bool {
	actingID, ok := auth.UserIDFromContext(r.Context())
	if !ok || actingID != id {
		writeError(w, apperror.Forbidden("you may only modify your own profile"))
		return false
	}
	return true
}

// parseKind maps a route segment to a reference kind.
func parseKind(segment string) (model.RefKind, error) {
	switch segment {
	case "skills":
		return model.RefSkill, nil
	case "projects":
		return model.RefProject, nil
	case "events":
		return model.RefEvent, nil
	}
	return "", apperror.ValidationFailed("kind", "kind must be one of skills, projects, events")
}
