package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/doaqui/doaqui/internal/auth"
	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/service"
)

// ProductHandler handles product API requests.
type ProductHandler struct {
	productService *service.ProductService
	listingService *service.ListingService
	logger         zerolog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(
	productService *service.ProductService,
	listingService *service.ListingService,
	logger zerolog.Logger,
) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		listingService: listingService,
		logger:         logger.With().Str("handler", "product").Logger(),
	}
}

// productPayload is the wire shape of create and update requests.
// The receiver field keeps the legacy spelling clients already send.
type productPayload struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	State       domain.Condition `json:"state"`
	PurchasedAt time.Time        `json:"purchased_at"`
	Images      []string         `json:"images"`
	Available   *bool            `json:"available"`
	Owner       string           `json:"owner"`
	Receiver    string           `json:"reciever"`
}

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorStatus(w, errors.New("invalid request body"), http.StatusBadRequest)
		return
	}

	output, err := h.productService.Create(r.Context(), service.CreateProductInput{
		Actor: *actor,
		Fields: domain.CreationFields{
			Name:        payload.Name,
			Description: payload.Description,
			State:       payload.State,
			PurchasedAt: payload.PurchasedAt,
			Images:      payload.Images,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Product listed successfully",
		"product": output.Product,
	})
}

// Index handles GET /products.
func (h *ProductHandler) Index(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	output, err := h.listingService.Index(r.Context(), service.IndexInput{Page: page, Limit: limit})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": output.Products,
		"page":     output.Page,
		"limit":    output.Limit,
	})
}

// Show handles GET /products/{id}.
func (h *ProductHandler) Show(w http.ResponseWriter, r *http.Request) {
	output, err := h.listingService.ShowById(r.Context(), service.ShowInput{
		ProductID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product": output.Product,
	})
}

// Update handles PATCH /products/{id}. Unlike the read path, a malformed
// identifier here is a client error, not a not-found; incomplete field
// sets answer 400 as well, not the create path's 422.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorStatus(w, errors.New("invalid request body"), http.StatusBadRequest)
		return
	}

	output, err := h.productService.Update(r.Context(), service.UpdateProductInput{
		Actor:     *actor,
		ProductID: chi.URLParam(r, "id"),
		Fields: domain.UpdateFields{
			Name:        payload.Name,
			Description: payload.Description,
			State:       payload.State,
			PurchasedAt: payload.PurchasedAt,
			Images:      payload.Images,
			Available:   payload.Available,
			Owner:       payload.Owner,
			Receiver:    payload.Receiver,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidProductID),
			errors.Is(err, domain.ErrMissingName),
			errors.Is(err, domain.ErrMissingDescription),
			errors.Is(err, domain.ErrMissingImage):
			writeErrorStatus(w, err, http.StatusBadRequest)
		default:
			writeError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Product updated successfully",
		"product": output.Product,
	})
}

// Delete handles DELETE /products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	err := h.productService.Delete(r.Context(), service.DeleteProductInput{
		Actor:     *actor,
		ProductID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Product removed successfully",
	})
}

// Schedule handles POST /products/{id}/schedule. The confirmation tells
// the owner how to reach the receiver; the malformed-id mapping matches
// Update.
func (h *ProductHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	output, err := h.productService.Schedule(r.Context(), service.ScheduleInput{
		Actor:     *actor,
		ProductID: chi.URLParam(r, "id"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidProductID) {
			writeErrorStatus(w, err, http.StatusBadRequest)
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": output.Message,
	})
}

// Conclude handles POST /products/{id}/conclude.
func (h *ProductHandler) Conclude(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	output, err := h.productService.ConcludeDonation(r.Context(), service.ConcludeInput{
		Actor:     *actor,
		ProductID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Donation concluded successfully",
		"product": output.Product,
	})
}

// Transfer handles POST /products/{id}/transfer.
func (h *ProductHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	var payload struct {
		NewOwner string `json:"new_owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorStatus(w, errors.New("invalid request body"), http.StatusBadRequest)
		return
	}

	output, err := h.productService.TransferOwnership(r.Context(), service.TransferInput{
		Actor:      *actor,
		ProductID:  chi.URLParam(r, "id"),
		NewOwnerID: payload.NewOwner,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Ownership transferred successfully",
		"product": output.Product,
	})
}

// Mine handles GET /products/mine.
func (h *ProductHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	output, err := h.listingService.FindByOwner(r.Context(), service.DashboardInput{Actor: *actor})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": output.Products,
	})
}

// Receiving handles GET /products/receiving.
func (h *ProductHandler) Receiving(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	output, err := h.listingService.FindByReceiver(r.Context(), service.DashboardInput{Actor: *actor})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": output.Products,
	})
}
