package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tailorbook/api/internal/measurement"
	"github.com/tailorbook/api/internal/middleware"
	"github.com/tailorbook/api/internal/order"
	"github.com/tailorbook/api/internal/ws"
)

// IntakeHandler drives order intake sessions. Each session wraps one
// order.Controller held in the Registry between requests.
type IntakeHandler struct {
	deps order.Deps
	reg  *Registry
	pub  Publisher
	opts []order.Option
}

// NewIntakeHandler creates a new IntakeHandler. pub may be nil.
func NewIntakeHandler(deps order.Deps, reg *Registry, pub Publisher, opts ...order.Option) *IntakeHandler {
	return &IntakeHandler{deps: deps, reg: reg, pub: pub, opts: opts}
}

// RegisterRoutes registers intake endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/intake
func (h *IntakeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Start)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Close)
		r.Put("/customer", h.SetCustomer)
		r.Put("/mode", h.SetMode)
		r.Put("/due-date", h.SetDueDate)
		r.Put("/payment", h.SetPayment)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{idx}", h.UpdateItem)
		r.Delete("/items/{idx}", h.RemoveItem)
		r.Put("/items/{idx}/preset", h.SelectPreset)
		r.Put("/items/{idx}/custom", h.UseCustomType)
		r.Put("/items/{idx}/measurements", h.SetMeasurements)
		r.Post("/items/{idx}/autofill", h.ApplySuggestion)
		r.Post("/history", h.RefreshHistory)
		r.Get("/customers", h.SuggestCustomers)
		r.Post("/draft", h.SaveDraft)
		r.Post("/submit", h.Submit)
	})
}

// --- Request types ---

type startIntakeRequest struct {
	DraftID *string `json:"draft_id"`
	Mode    string  `json:"mode"`
}

type customerRequest struct {
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type dueDateRequest struct {
	DueDate string `json:"due_date"`
}

type paymentRequest struct {
	PaymentMode     string `json:"payment_mode"`
	CashPaymentMode string `json:"cash_payment_mode"`
	DiscountAmount  string `json:"discount_amount"`
	PayNowAmount    string `json:"pay_now_amount"`
	PayLaterDate    string `json:"pay_later_date"`
	AdvancePayment  string `json:"advance_payment"`
}

type updateItemRequest struct {
	GarmentType  *string `json:"garment_type"`
	Quantity     *int    `json:"quantity"`
	PricePerItem *string `json:"price_per_item"`
	Notes        *string `json:"notes"`
}

type presetRequest struct {
	PresetID string `json:"preset_id"`
}

type customTypeRequest struct {
	GarmentType string `json:"garment_type"`
}

type measurementsRequest struct {
	Measurements      map[string]string `json:"measurements"`
	ExtraMeasurements map[string]string `json:"extra_measurements"`
}

// --- Helpers ---

func (h *IntakeHandler) lookup(w http.ResponseWriter, r *http.Request) (uuid.UUID, *order.Controller, bool) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return uuid.Nil, nil, false
	}
	id, ok := uuidParam(w, r, "id", "intake ID")
	if !ok {
		return uuid.Nil, nil, false
	}
	ctrl, ok := h.reg.Get(shopID, id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "intake session not found"})
		return uuid.Nil, nil, false
	}
	return id, ctrl, true
}

func (h *IntakeHandler) respond(w http.ResponseWriter, status int, id uuid.UUID, ctrl *order.Controller) {
	writeJSON(w, status, toIntakeResponse(id, ctrl.Snapshot()))
}

// mutate runs fn against the session's controller and responds with the
// updated form.
func (h *IntakeHandler) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(*order.Controller) error) {
	id, ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := fn(ctrl); err != nil {
		writeError(w, op, err)
		return
	}
	h.respond(w, http.StatusOK, id, ctrl)
}

func (h *IntakeHandler) publish(shopID uuid.UUID, typ string, payload any) {
	if h.pub != nil {
		h.pub.Publish(shopID, typ, payload)
	}
}

// --- Handlers ---

// Start opens a new intake session, optionally resuming a saved draft.
func (h *IntakeHandler) Start(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req startIntakeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var draftID uuid.NullUUID
	if req.DraftID != nil && *req.DraftID != "" {
		id, err := uuid.Parse(*req.DraftID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid draft_id"})
			return
		}
		draftID = uuid.NullUUID{UUID: id, Valid: true}
	}

	ctrl := order.NewController(sess, h.deps, h.opts...)
	if err := ctrl.Start(r.Context(), draftID, order.EntryMode(req.Mode)); err != nil {
		writeError(w, "start intake", err)
		return
	}

	id := h.reg.Add(ctrl)
	h.respond(w, http.StatusCreated, id, ctrl)
}

func (h *IntakeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl)
}

// Close discards the session. A saved draft stays in the store.
func (h *IntakeHandler) Close(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "intake ID")
	if !ok {
		return
	}
	if !h.reg.Remove(shopID, id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "intake session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IntakeHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, "set customer", func(c *order.Controller) error {
		return c.SetCustomer(order.Customer{Name: req.Name, Phone: req.Phone, Email: req.Email})
	})
}

func (h *IntakeHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, "set mode", func(c *order.Controller) error {
		return c.SetMode(order.EntryMode(req.Mode))
	})
}

func (h *IntakeHandler) SetDueDate(w http.ResponseWriter, r *http.Request) {
	var req dueDateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, "set due date", func(c *order.Controller) error {
		return c.SetDueDate(req.DueDate)
	})
}

func (h *IntakeHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, "set payment", func(c *order.Controller) error {
		return c.SetPayment(order.PaymentForm{
			Mode:            req.PaymentMode,
			CashPaymentMode: req.CashPaymentMode,
			DiscountAmount:  req.DiscountAmount,
			PayNowAmount:    req.PayNowAmount,
			PayLaterDate:    req.PayLaterDate,
			AdvancePayment:  req.AdvancePayment,
		})
	})
}

func (h *IntakeHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	idx, err := ctrl.AddItem()
	if err != nil {
		writeError(w, "add item", err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+strconv.Itoa(idx))
	h.respond(w, http.StatusCreated, id, ctrl)
}

func (h *IntakeHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, "update item", func(c *order.Controller) error {
		return c.UpdateItem(idx, order.ItemEdit{
			GarmentType:  req.GarmentType,
			Quantity:     req.Quantity,
			PricePerItem: req.PricePerItem,
			Notes:        req.Notes,
		})
	})
}

func (h *IntakeHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, "remove item", func(c *order.Controller) error {
		return c.RemoveItem(idx)
	})
}

// SelectPreset binds a preset to the item and autofills measurements from
// the customer's history. The applied history match, if any, is returned.
func (h *IntakeHandler) SelectPreset(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req presetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	presetID, err := uuid.Parse(req.PresetID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid preset_id"})
		return
	}

	id, ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	match, err := ctrl.SelectPreset(idx, presetID)
	if err != nil {
		writeError(w, "select preset", err)
		return
	}
	h.respondApplied(w, id, ctrl, match)
}

func (h *IntakeHandler) UseCustomType(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req customTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, "use custom type", func(c *order.Controller) error {
		return c.UseCustomType(idx, req.GarmentType)
	})
}

// SetMeasurements writes preset and extra measurement values. A rejected key
// fails the whole request and nothing is written.
func (h *IntakeHandler) SetMeasurements(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req measurementsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, "set measurements", func(c *order.Controller) error {
		return c.SetMeasurements(idx, req.Measurements, req.ExtraMeasurements)
	})
}

// ApplySuggestion copies the item's pending history suggestion into it.
func (h *IntakeHandler) ApplySuggestion(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	id, ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	match, err := ctrl.ApplySuggestion(idx)
	if err != nil {
		writeError(w, "apply suggestion", err)
		return
	}
	h.respondApplied(w, id, ctrl, match)
}

func (h *IntakeHandler) respondApplied(w http.ResponseWriter, id uuid.UUID, ctrl *order.Controller, match *measurement.Match) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applied": toMatchResponse(match),
		"intake":  toIntakeResponse(id, ctrl.Snapshot()),
	})
}

// RefreshHistory reloads the customer's past orders. A response that was
// overtaken by a newer edit is reported as 409 and not applied.
func (h *IntakeHandler) RefreshHistory(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "refresh history", func(c *order.Controller) error {
		return c.RefreshHistory(r.Context())
	})
}

func (h *IntakeHandler) SuggestCustomers(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 50 {
		limit = 50
	}

	writeJSON(w, http.StatusOK, toCustomerResponses(ctrl.SuggestCustomers(r.URL.Query().Get("q"), limit)))
}

// SaveDraft persists the form as a draft. An unsaved draft is not an
// error; "saved" reports what happened.
func (h *IntakeHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	saved := ctrl.SaveDraft(r.Context())
	v := ctrl.Snapshot()
	if saved && v.DraftID.Valid {
		h.publish(ctrl.Session().ShopID, ws.EventDraftSaved, map[string]interface{}{
			"draft_id":      v.DraftID.UUID,
			"customer_name": v.Customer.Name,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"saved":  saved,
		"intake": toIntakeResponse(id, v),
	})
}

// Submit validates and finalizes the order.
func (h *IntakeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	res, err := ctrl.Submit(r.Context())
	if err != nil {
		writeError(w, "submit order", err)
		return
	}

	result := toResultResponse(res)
	h.publish(ctrl.Session().ShopID, ws.EventOrderCreated, result.Order)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"result": result,
		"intake": toIntakeResponse(id, ctrl.Snapshot()),
	})
}
