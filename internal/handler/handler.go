package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"card-offers-api/internal/auth"
	"card-offers-api/internal/models"
	"card-offers-api/internal/service"
	"card-offers-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// IngestOffers handles POST /offers
func (h *Handler) IngestOffers(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.IngestOffersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	count, err := h.service.IngestOffers(r.Context(), userID, req.Offers)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.IngestOffersResponse{
		OK:    true,
		Count: count,
	})
}

// ListOffers handles GET /offers
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	params := r.URL.Query()

	q := models.ListOffersQuery{
		Search:  validation.SanitizeString(params.Get("q")),
		CardNum: validation.SanitizeString(params.Get("card")),
		Source:  strings.ToLower(validation.SanitizeString(params.Get("source"))),
	}

	if page := params.Get("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "invalid 'page' parameter")
			return
		}
		q.Page = n
	}
	if limit := params.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		q.Limit = n
	}
	if highlighted := params.Get("highlighted"); highlighted != "" {
		switch strings.ToLower(highlighted) {
		case "true", "1":
			v := true
			q.Highlighted = &v
		case "false", "0":
			v := false
			q.Highlighted = &v
		default:
			h.respondError(w, http.StatusBadRequest, "invalid 'highlighted' parameter, must be true or false")
			return
		}
	}

	resp, err := h.service.ListOffers(r.Context(), userID, q)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ToggleHighlight handles POST /offers/{offer_id}/highlight
func (h *Handler) ToggleHighlight(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	offerID := validation.SanitizeString(chi.URLParam(r, "offer_id"))
	if offerID == "" {
		h.respondError(w, http.StatusBadRequest, "offer_id is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.HighlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	// The same offer id can exist under multiple cards; an explicit card
	// query param narrows the toggle to one of them.
	var cardNum *string
	if card, present := r.URL.Query()["card"]; present && len(card) > 0 {
		c := validation.SanitizeString(card[0])
		cardNum = &c
	}

	updated, err := h.service.SetHighlight(r.Context(), userID, offerID, cardNum, req.Highlighted)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if updated == 0 {
		h.respondError(w, http.StatusNotFound, "offer not found")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"highlighted": req.Highlighted,
	})
}

// PurgeOffers handles DELETE /offers
func (h *Handler) PurgeOffers(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	source := strings.ToLower(validation.SanitizeString(r.URL.Query().Get("source")))

	deleted, err := h.service.PurgeOffers(r.Context(), userID, source)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.PurgeOffersResponse{
		OK:      true,
		Deleted: deleted,
	})
}

// respondServiceError maps service errors onto status codes: validation
// failures surface as 400 with their message, anything else is logged and
// returned as an opaque 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var vErr *validation.ValidationError
	if errors.As(err, &vErr) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("internal error: %v", err)
	h.respondError(w, http.StatusInternalServerError, "internal server error")
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
