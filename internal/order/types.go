package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tailorbook/api/internal/enum"
)

// Session identifies who is building the order. It is fixed for the
// lifetime of a Controller.
type Session struct {
	ShopID uuid.UUID
	UserID uuid.UUID
	Token  string
}

// Field is one measurement declared by a preset.
type Field struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Unit     string `json:"unit"`
	Required bool   `json:"required"`
}

// Preset is a named measurement template. Name doubles as the garment type.
type Preset struct {
	ID        uuid.UUID
	ShopID    uuid.UUID
	Name      string
	Fields    []Field
	BasePrice decimal.NullDecimal
}

// HasField reports whether name is one of the preset's declared fields.
func (p Preset) HasField(name string) bool {
	for _, f := range p.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

type Customer struct {
	Name  string
	Phone string
	Email *string
}

// Measurements maps a field name to the value the tailor entered.
type Measurements map[string]string

// LineItemPayload is a line item as it is persisted. Nil pointers are
// "not set" and are omitted, which is different from an empty value.
type LineItemPayload struct {
	GarmentType         string          `json:"garment_type"`
	Quantity            int             `json:"quantity"`
	PricePerItem        decimal.Decimal `json:"price_per_item"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	MeasurementPresetID *uuid.UUID      `json:"measurement_preset_id,omitempty"`
	PresetName          *string         `json:"preset_name,omitempty"`
	Measurements        *Measurements   `json:"measurements,omitempty"`
	ExtraMeasurements   *Measurements   `json:"extra_measurements,omitempty"`
	Notes               *string         `json:"notes,omitempty"`
	IsCustomType        bool            `json:"is_custom_type,omitempty"`
}

// PaymentFields holds both payment shapes. Measurement orders use
// AdvancePayment; manual bills use the discount and pay-now/pay-later fields.
type PaymentFields struct {
	GrossAmount     decimal.Decimal
	AdvancePayment  decimal.NullDecimal
	Discount        decimal.NullDecimal
	PaymentMode     string
	CashPaymentMode string
	PaymentStatus   string
	PayNow          decimal.NullDecimal
	Remaining       decimal.Decimal
	PayLaterEnabled bool
	PayLaterAmount  decimal.NullDecimal
	PayLaterDate    *string // YYYY-MM-DD
}

// OrderPayload is what the controller sends to order history on create/update.
type OrderPayload struct {
	ShopID        uuid.UUID
	CreatedBy     uuid.UUID
	Status        string
	CustomerName  string
	CustomerPhone string
	CustomerEmail *string
	DueDate       *string // YYYY-MM-DD
	IsManualBill  bool
	Items         []LineItemPayload
	Payment       PaymentFields
}

// Order is a stored order or draft.
type Order struct {
	OrderPayload
	ID            uuid.UUID
	InvoiceNumber string

	// Orders from before multi-item support carry one garment here.
	OrderType    string
	Measurements Measurements

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateResult is returned by the create path of order history.
type CreateResult struct {
	Order   Order
	Invoice string
}

// OrderFilter narrows GetOrders. A zero Limit means the store default.
type OrderFilter struct {
	CustomerPhone string
	Limit         int
}

// PresetCatalog is the read-only source of measurement presets.
type PresetCatalog interface {
	GetPresets(ctx context.Context, shopID uuid.UUID) ([]Preset, error)
}

// CustomerDirectory lists known customers for autocomplete.
type CustomerDirectory interface {
	GetCustomers(ctx context.Context, shopID uuid.UUID) ([]Customer, error)
}

// OrderHistory persists orders and drafts. GetOrders returns newest first.
type OrderHistory interface {
	GetOrders(ctx context.Context, shopID uuid.UUID, filter OrderFilter) ([]Order, error)
	GetDraft(ctx context.Context, shopID, draftID uuid.UUID) (Order, error)
	CreateOrder(ctx context.Context, payload OrderPayload) (*CreateResult, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, payload OrderPayload) (Order, error)
	DeleteOrder(ctx context.Context, shopID, id uuid.UUID) error
}

// DraftPromoter is implemented by stores that can turn a draft into a
// finalized order in one step: the order is created through the normal
// create path and the draft removed atomically. A draft that was deleted or
// finalized elsewhere must be reported by wrapping ErrDraftGone.
type DraftPromoter interface {
	PromoteDraft(ctx context.Context, shopID, draftID uuid.UUID, payload OrderPayload) (*CreateResult, error)
}

// EntryMode selects between a measurement order and a manual bill.
type EntryMode string

const (
	EntryModeMeasurement EntryMode = enum.EntryModeMeasurement
	EntryModeManual      EntryMode = enum.EntryModeManual
)

func (m EntryMode) Valid() bool {
	return m == EntryModeMeasurement || m == EntryModeManual
}
