package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/api/validation"
	"github.com/adorable-dev/adorable/internal/figma"
)

// FigmaClient is the subset of the Figma API the import proxy uses.
type FigmaClient interface {
	Frames(ctx context.Context, token, fileKey string) ([]figma.Frame, error)
	Images(ctx context.Context, token, fileKey string, nodeIDs []string, opts figma.ImageOptions) (map[string]string, error)
}

type figmaFramesRequest struct {
	FileKey string `json:"fileKey"`
	Token   string `json:"token"`
}

type figmaImagesRequest struct {
	FileKey string   `json:"fileKey"`
	Token   string   `json:"token"`
	NodeIDs []string `json:"nodeIds"`
	Scale   float64  `json:"scale"`
	Format  string   `json:"format"`
}

// FigmaHandler proxies frame listing and rendering to the Figma API with the
// caller's personal access token.
type FigmaHandler struct {
	client FigmaClient
}

// NewFigmaHandler creates a new FigmaHandler.
func NewFigmaHandler(client FigmaClient) *FigmaHandler {
	return &FigmaHandler{client: client}
}

func validateFigmaRequest(fileKey, token string) []validation.FieldError {
	var errs []validation.FieldError
	if strings.TrimSpace(fileKey) == "" {
		errs = append(errs, validation.FieldError{Field: "fileKey", Message: "fileKey is required"})
	}
	if strings.TrimSpace(token) == "" {
		errs = append(errs, validation.FieldError{Field: "token", Message: "token is required"})
	}
	return errs
}

func writeFigmaError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, figma.ErrNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Figma file not found", requestID)
	case errors.Is(err, figma.ErrUnauthorized):
		response.Err(w, http.StatusBadRequest, "FIGMA_UNAUTHORIZED", "Figma rejected the access token", requestID)
	case errors.Is(err, figma.ErrInvalidRequest):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestID)
	default:
		middleware.Logger(r.Context()).Warnw("figma request failed", "error", err)
		response.Err(w, http.StatusBadGateway, "FIGMA_ERROR", "Figma request failed", requestID)
	}
}

// Frames handles POST /api/figma/frames.
func (h *FigmaHandler) Frames(w http.ResponseWriter, r *http.Request) {
	var req figmaFramesRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if validationFailed(w, r, validateFigmaRequest(req.FileKey, req.Token)) {
		return
	}

	frames, err := h.client.Frames(r.Context(), strings.TrimSpace(req.Token), strings.TrimSpace(req.FileKey))
	if err != nil {
		writeFigmaError(w, r, err)
		return
	}
	if frames == nil {
		frames = []figma.Frame{}
	}

	response.JSON(w, http.StatusOK, response.Body{"frames": frames})
}

// Images handles POST /api/figma/images.
func (h *FigmaHandler) Images(w http.ResponseWriter, r *http.Request) {
	var req figmaImagesRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	errs := validateFigmaRequest(req.FileKey, req.Token)
	if len(req.NodeIDs) == 0 {
		errs = append(errs, validation.FieldError{Field: "nodeIds", Message: "nodeIds must not be empty"})
	}
	if validationFailed(w, r, errs) {
		return
	}

	images, err := h.client.Images(r.Context(), strings.TrimSpace(req.Token), strings.TrimSpace(req.FileKey), req.NodeIDs,
		figma.ImageOptions{Scale: req.Scale, Format: req.Format})
	if err != nil {
		writeFigmaError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Body{"images": images})
}
