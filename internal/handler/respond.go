package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tailorbook/api/internal/order"
	"github.com/tailorbook/api/internal/payment"
	"github.com/tailorbook/api/internal/store"
)

// Publisher pushes events to a shop's connected screens. Satisfied by *ws.Hub.
type Publisher interface {
	Publish(shopID uuid.UUID, typ string, payload any)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func shopIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return uuid.Nil, false
	}
	return shopID, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label})
		return uuid.Nil, false
	}
	return id, true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil || idx < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item index"})
		return 0, false
	}
	return idx, true
}

// writeError maps domain errors to status codes. Validation failures are
// 400 with the offending field, state conflicts 409, missing things 404.
func writeError(w http.ResponseWriter, op string, err error) {
	var ve *order.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Err.Error(), "field": ve.Field})
		return
	}
	var fe payment.FieldErrors
	if errors.As(err, &fe) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payment", "fields": map[string]string(fe)})
		return
	}

	switch {
	case errors.Is(err, order.ErrSubmitFailed):
		// Already logged by the controller; the form stays editable for a retry.
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not submit order, try again"})
	case errors.Is(err, order.ErrNotStarted),
		errors.Is(err, order.ErrAlreadyStarted),
		errors.Is(err, order.ErrBusy),
		errors.Is(err, order.ErrAlreadySubmitted),
		errors.Is(err, order.ErrStaleHistory),
		errors.Is(err, order.ErrNotDraft),
		errors.Is(err, order.ErrNoSuggestion),
		errors.Is(err, store.ErrPresetExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": rootMessage(err)})
	case errors.Is(err, order.ErrItemIndex),
		errors.Is(err, order.ErrUnknownPreset),
		errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": rootMessage(err)})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// rootMessage returns the innermost error text, hiding wrapping context.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func decimalString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func nullDecimalString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}
