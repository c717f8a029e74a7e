package handler

import (
	"errors"
	"net/http"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/kit"
)

// writeKitError maps kit errors to responses and reports whether it wrote one.
func writeKitError(w http.ResponseWriter, r *http.Request, err error) bool {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, kit.ErrKitNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Kit not found", requestID)
	case errors.Is(err, kit.ErrReadOnly):
		response.Err(w, http.StatusForbidden, "READ_ONLY", err.Error(), requestID)
	case errors.Is(err, kit.ErrForbidden):
		response.Err(w, http.StatusForbidden, "FORBIDDEN", err.Error(), requestID)
	case errors.Is(err, kit.ErrInvalidKit):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestID)
	case errors.Is(err, kit.ErrDuplicateID):
		response.Err(w, http.StatusBadRequest, "DUPLICATE_ID", err.Error(), requestID)
	default:
		return false
	}
	return true
}

// KitHandler handles kit CRUD endpoints.
type KitHandler struct {
	svc *kit.Service
}

// NewKitHandler creates a new KitHandler.
func NewKitHandler(svc *kit.Service) *KitHandler {
	return &KitHandler{svc: svc}
}

// List handles GET /api/kits.
func (h *KitHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	kits, err := h.svc.List(r.Context(), userID)
	if err != nil {
		internalError(w, r, "failed to list kits", err)
		return
	}
	if kits == nil {
		kits = []kit.Kit{}
	}

	response.JSON(w, http.StatusOK, response.Body{"kits": kits})
}

// Get handles GET /api/kits/{kitId}.
func (h *KitHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	kitID, ok := kitParam(w, r)
	if !ok {
		return
	}

	k, err := h.svc.Get(r.Context(), kitID, userID)
	if err != nil {
		if writeKitError(w, r, err) {
			return
		}
		internalError(w, r, "failed to load kit", err, "kit_id", kitID)
		return
	}

	response.JSON(w, http.StatusOK, response.Body{"kit": k})
}

// Create handles POST /api/kits. A teamId in the body creates a team kit.
func (h *KitHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var k kit.Kit
	if !decodeJSON(w, r, &k, maxFilesBodyBytes) {
		return
	}
	teamID := k.TeamID

	if err := h.svc.Create(r.Context(), &k, userID, teamID); err != nil {
		if writeKitError(w, r, err) {
			return
		}
		internalError(w, r, "failed to create kit", err)
		return
	}

	response.Success(w, http.StatusCreated, response.Body{"kit": k})
}

// Update handles PUT /api/kits/{kitId}.
func (h *KitHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	kitID, ok := kitParam(w, r)
	if !ok {
		return
	}

	var changes kit.Kit
	if !decodeJSON(w, r, &changes, maxFilesBodyBytes) {
		return
	}

	k, err := h.svc.Update(r.Context(), kitID, userID, &changes)
	if err != nil {
		if writeKitError(w, r, err) {
			return
		}
		internalError(w, r, "failed to update kit", err, "kit_id", kitID)
		return
	}

	response.Success(w, http.StatusOK, response.Body{"kit": k})
}

// Delete handles DELETE /api/kits/{kitId}.
func (h *KitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	kitID, ok := kitParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), kitID, userID); err != nil {
		if writeKitError(w, r, err) {
			return
		}
		internalError(w, r, "failed to delete kit", err, "kit_id", kitID)
		return
	}

	response.Success(w, http.StatusOK, nil)
}
