package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusDraft        = "Draft"
	OrderStatusOrderCreated = "OrderCreated"
)

const (
	PaymentStatusPaid      = "paid"
	PaymentStatusScheduled = "scheduled"
	PaymentStatusPartial   = "partial"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner = "OWNER"
	UserRoleStaff = "STAFF"
)

const (
	FieldUnitInches = "inches"
	FieldUnitCM     = "cm"
	FieldUnitAny    = "any"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	EntryModeMeasurement = "measurement"
	EntryModeManual      = "manual"
)

const (
	PaymentModePayNow   = "Pay Now"
	PaymentModePayLater = "Pay Later"
	PaymentModePartial  = "Partial"
)

const (
	CashModeCash   = "Cash"
	CashModeUPI    = "UPI"
	CashModeCard   = "Card"
	CashModeOnline = "Online"
)

// Garment type written for draft items saved before a type was chosen.
const GarmentTypeUnspecified = "Unspecified"
