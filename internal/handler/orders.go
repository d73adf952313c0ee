package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tailorbook/api/internal/order"
	"github.com/tailorbook/api/internal/ws"
)

// OrderStore defines the methods needed by order handlers.
// Satisfied by *store.Repository; narrow interface for testability.
type OrderStore interface {
	GetOrders(ctx context.Context, shopID uuid.UUID, filter order.OrderFilter) ([]order.Order, error)
	GetOrder(ctx context.Context, shopID, id uuid.UUID) (order.Order, error)
	DeleteOrder(ctx context.Context, shopID, id uuid.UUID) error
}

// OrderHandler handles stored order and draft endpoints.
type OrderHandler struct {
	store OrderStore
	pub   Publisher
}

// NewOrderHandler creates a new OrderHandler. pub may be nil.
func NewOrderHandler(store OrderStore, pub Publisher) *OrderHandler {
	return &OrderHandler{store: store, pub: pub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
}

// List returns orders newest first, optionally for one customer phone.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	orders, err := h.store.GetOrders(r.Context(), shopID, order.OrderFilter{
		CustomerPhone: strings.Join(strings.Fields(r.URL.Query().Get("customer_phone")), ""),
		Limit:         limit,
	})
	if err != nil {
		writeError(w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": resp,
		"limit":  limit,
	})
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return
	}

	o, err := h.store.GetOrder(r.Context(), shopID, id)
	if err != nil {
		writeError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// Delete removes an order or an abandoned draft.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return
	}

	if err := h.store.DeleteOrder(r.Context(), shopID, id); err != nil {
		writeError(w, "delete order", err)
		return
	}
	if h.pub != nil {
		h.pub.Publish(shopID, ws.EventOrderDeleted, map[string]uuid.UUID{"id": id})
	}
	w.WriteHeader(http.StatusNoContent)
}
