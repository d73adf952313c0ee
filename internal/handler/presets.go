package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tailorbook/api/internal/enum"
	"github.com/tailorbook/api/internal/middleware"
	"github.com/tailorbook/api/internal/order"
	"github.com/tailorbook/api/internal/ws"
)

// PresetStore defines the methods needed by preset handlers.
// Satisfied by *store.Repository; narrow interface for testability.
type PresetStore interface {
	GetPresets(ctx context.Context, shopID uuid.UUID) ([]order.Preset, error)
	CreatePreset(ctx context.Context, p order.Preset) (order.Preset, error)
}

// PresetHandler handles measurement preset endpoints.
type PresetHandler struct {
	store PresetStore
	pub   Publisher
}

// NewPresetHandler creates a new PresetHandler. pub may be nil.
func NewPresetHandler(store PresetStore, pub Publisher) *PresetHandler {
	return &PresetHandler{store: store, pub: pub}
}

// RegisterRoutes registers preset endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/presets
func (h *PresetHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.With(middleware.RequireRole(enum.UserRoleOwner)).Post("/", h.Create)
}

type createPresetRequest struct {
	Name      string          `json:"name"`
	Fields    []fieldResponse `json:"fields"`
	BasePrice *string         `json:"base_price"`
}

func (h *PresetHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	presets, err := h.store.GetPresets(r.Context(), shopID)
	if err != nil {
		writeError(w, "list presets", err)
		return
	}

	resp := make([]presetResponse, len(presets))
	for i, p := range presets {
		resp[i] = toPresetResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PresetHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	var req createPresetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, msg := req.toPreset(shopID)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	created, err := h.store.CreatePreset(r.Context(), p)
	if err != nil {
		writeError(w, "create preset", err)
		return
	}

	resp := toPresetResponse(created)
	if h.pub != nil {
		h.pub.Publish(shopID, ws.EventPresetAdded, resp)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// toPreset validates the request. A non-empty message means it was rejected.
func (req createPresetRequest) toPreset(shopID uuid.UUID) (order.Preset, string) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return order.Preset{}, "name is required"
	}
	if len(req.Fields) == 0 {
		return order.Preset{}, "at least one field is required"
	}

	seen := make(map[string]bool, len(req.Fields))
	fields := make([]order.Field, 0, len(req.Fields))
	for _, f := range req.Fields {
		fname := strings.TrimSpace(f.Name)
		if fname == "" {
			return order.Preset{}, "field name is required"
		}
		if seen[fname] {
			return order.Preset{}, "duplicate field: " + fname
		}
		seen[fname] = true

		unit := f.Unit
		if unit == "" {
			unit = enum.FieldUnitAny
		}
		switch unit {
		case enum.FieldUnitInches, enum.FieldUnitCM, enum.FieldUnitAny:
		default:
			return order.Preset{}, "invalid unit for field " + fname
		}

		label := strings.TrimSpace(f.Label)
		if label == "" {
			label = fname
		}
		fields = append(fields, order.Field{Name: fname, Label: label, Unit: unit, Required: f.Required})
	}

	p := order.Preset{ShopID: shopID, Name: name, Fields: fields}
	if req.BasePrice != nil && strings.TrimSpace(*req.BasePrice) != "" {
		d, err := decimal.NewFromString(strings.TrimSpace(*req.BasePrice))
		if err != nil || d.IsNegative() {
			return order.Preset{}, "invalid base_price"
		}
		p.BasePrice = decimal.NewNullDecimal(d)
	}
	return p, ""
}
