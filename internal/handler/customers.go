package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tailorbook/api/internal/order"
)

// CustomerStore defines the methods needed by customer handlers.
// Satisfied by *store.Repository; narrow interface for testability.
type CustomerStore interface {
	GetCustomers(ctx context.Context, shopID uuid.UUID) ([]order.Customer, error)
}

// CustomerHandler lists the shop's known customers.
type CustomerHandler struct {
	store CustomerStore
}

func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// RegisterRoutes registers customer endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/customers
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	customers, err := h.store.GetCustomers(r.Context(), shopID)
	if err != nil {
		writeError(w, "list customers", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponses(customers))
}
