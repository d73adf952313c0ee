package order

import (
	"errors"
	"fmt"
)

// Errors returned by the controller.
var (
	ErrNotStarted       = errors.New("order intake not started")
	ErrAlreadyStarted   = errors.New("order intake already started")
	ErrBusy             = errors.New("order is being saved, try again")
	ErrAlreadySubmitted = errors.New("order already submitted")
	ErrNotDraft         = errors.New("order is not a draft")
	ErrDraftGone        = errors.New("draft no longer exists")
	ErrItemIndex        = errors.New("item not found")
	ErrUnknownPreset    = errors.New("preset not found")
	ErrNoSuggestion     = errors.New("no measurement suggestion for item")
	ErrStaleHistory     = errors.New("customer history result is stale")
	ErrSubmitFailed     = errors.New("could not submit order")
)

// Validation failures. Each is wrapped in a ValidationError naming the field.
var (
	ErrCustomerName     = errors.New("customer name is required")
	ErrCustomerPhone    = errors.New("phone must be 10 to 15 digits")
	ErrDueDate          = errors.New("due date is required")
	ErrInvalidDate      = errors.New("invalid date, use DD/MM/YYYY")
	ErrInvalidMode      = errors.New("entry mode must be measurement or manual")
	ErrLastItem         = errors.New("You must have at least one item")
	ErrGarmentType      = errors.New("garment type is required")
	ErrPrice            = errors.New("price must be greater than 0")
	ErrInvalidPrice     = errors.New("price must be a number of 0 or more with at most 2 decimals")
	ErrQuantity         = errors.New("quantity must be at least 1")
	ErrMeasurementField = errors.New("measurement is not part of the preset")
	ErrMeasurementValue = errors.New("measurement is required")
)

// ValidationError is a local, recoverable error tied to one form field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func itemField(idx int, name string) string {
	return fmt.Sprintf("items[%d].%s", idx, name)
}
