package payment

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tailorbook/api/internal/dates"
	"github.com/tailorbook/api/internal/enum"
)

// Field keys used in FieldErrors.
const (
	FieldPaymentMode     = "paymentMode"
	FieldDiscountAmount  = "discountAmount"
	FieldPayNowAmount    = "payNowAmount"
	FieldCashPaymentMode = "cashPaymentMode"
	FieldPayLaterDate    = "payLaterDate"
	FieldAdvancePayment  = "advancePayment"
)

// Input is the manual-bill payment form. Amounts are raw user input.
type Input struct {
	Gross           decimal.Decimal
	DiscountAmount  string
	Mode            string
	PayNowAmount    string
	PayLaterDate    string // DD/MM/YYYY
	CashPaymentMode string
}

// Summary is the cash-flow breakdown derived from an Input.
type Summary struct {
	Gross        decimal.Decimal
	Discount     decimal.Decimal
	FinalPayable decimal.Decimal
	PayNow       decimal.Decimal
	Remaining    decimal.Decimal
}

// Payload is a validated payment breakdown ready to be persisted.
type Payload struct {
	PaymentStatus   string
	PaymentMode     string
	CashPaymentMode string
	Discount        decimal.Decimal
	FinalPayable    decimal.Decimal
	PayNow          decimal.Decimal
	Remaining       decimal.Decimal
	PayLaterEnabled bool
	PayLaterAmount  decimal.Decimal
	PayLaterDate    *string // YYYY-MM-DD
}

// FieldErrors maps a form field to the message shown next to it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return strings.Join(parts, "; ")
}

// Reconciler validates manual-bill payments against the shop's calendar.
type Reconciler struct {
	loc *time.Location
	now func() time.Time
}

// NewReconciler creates a Reconciler. A nil now uses time.Now.
func NewReconciler(loc *time.Location, now func() time.Time) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{loc: loc, now: now}
}

// Location returns the time zone dates are interpreted in.
func (r *Reconciler) Location() *time.Location {
	return r.loc
}

// amountPattern is a plain decimal that fits NUMERIC(12,2): up to 10 integer
// digits and 2 fraction digits, no exponent.
var amountPattern = regexp.MustCompile(`^-?(\d{1,10}(\.\d{0,2})?|\.\d{1,2})$`)

// ParseAmount parses a user-entered amount. Unparsable input yields false,
// including exponents, more than 2 decimals and values too large to store.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if !amountPattern.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Summarize computes the breakdown. Order matters: discount, final payable,
// pay now, remaining. No value is ever negative.
func Summarize(in Input) Summary {
	gross := in.Gross
	if gross.IsNegative() {
		gross = decimal.Zero
	}
	discount := nonNegative(in.DiscountAmount)
	finalPayable := decimal.Max(decimal.Zero, gross.Sub(discount))
	payNow := nonNegative(in.PayNowAmount)
	remaining := decimal.Max(decimal.Zero, finalPayable.Sub(payNow))

	return Summary{
		Gross:        gross,
		Discount:     discount,
		FinalPayable: finalPayable,
		PayNow:       payNow,
		Remaining:    remaining,
	}
}

// Reconcile validates in and builds the payment payload. Every violated rule
// is reported against its own field; the payload is nil when any rule fails.
func (r *Reconciler) Reconcile(in Input) (*Payload, FieldErrors) {
	s := Summarize(in)
	errs := FieldErrors{}

	mode := in.Mode
	if !IsValidMode(mode) {
		errs[FieldPaymentMode] = "select a payment mode"
	}

	if s.Discount.GreaterThan(s.Gross) {
		errs[FieldDiscountAmount] = "discount cannot exceed the order total"
	}

	cash := strings.TrimSpace(in.CashPaymentMode)

	switch mode {
	case enum.PaymentModePayNow:
		switch {
		case !s.PayNow.IsPositive():
			errs[FieldPayNowAmount] = "enter the amount paid now"
		case s.PayNow.GreaterThan(s.FinalPayable):
			errs[FieldPayNowAmount] = "cannot exceed final payable"
		case s.PayNow.LessThan(s.FinalPayable):
			errs[FieldPayNowAmount] = "must equal final payable so nothing remains; use Partial for part payments"
		}
		if cash == "" {
			errs[FieldCashPaymentMode] = "select how the customer paid"
		}
	case enum.PaymentModePartial:
		switch {
		case !s.PayNow.IsPositive():
			errs[FieldPayNowAmount] = "enter the amount paid now"
		case !s.PayNow.LessThan(s.FinalPayable):
			errs[FieldPayNowAmount] = "must be less than final payable"
		}
		if cash == "" {
			errs[FieldCashPaymentMode] = "select how the customer paid"
		}
	}

	var payLaterDate *string
	if mode == enum.PaymentModePayLater || mode == enum.PaymentModePartial {
		iso, msg := r.checkPayLaterDate(in.PayLaterDate)
		if msg != "" {
			errs[FieldPayLaterDate] = msg
		} else {
			payLaterDate = &iso
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	payNow := s.PayNow
	remaining := s.Remaining
	if mode == enum.PaymentModePayLater {
		payNow = decimal.Zero
		remaining = s.FinalPayable
		cash = ""
	}

	p := &Payload{
		PaymentStatus:   Status(mode, remaining),
		PaymentMode:     mode,
		CashPaymentMode: cash,
		Discount:        s.Discount,
		FinalPayable:    s.FinalPayable,
		PayNow:          payNow,
		Remaining:       remaining,
		PayLaterEnabled: mode != enum.PaymentModePayNow,
		PayLaterDate:    payLaterDate,
	}
	if p.PayLaterEnabled {
		p.PayLaterAmount = remaining
	}
	return p, nil
}

// checkPayLaterDate returns the ISO date or a message for the field.
func (r *Reconciler) checkPayLaterDate(display string) (string, string) {
	if strings.TrimSpace(display) == "" {
		return "", "pay later date is required"
	}
	d, err := dates.ParseDisplay(display, r.loc)
	if err != nil {
		return "", "invalid date, use DD/MM/YYYY"
	}
	if dates.BeforeDay(d, r.now(), r.loc) {
		return "", "pay later date cannot be in the past"
	}
	return d.Format(dates.ISOLayout), ""
}

// ValidateAdvance checks the measurement-order advance payment. Outside
// "Pay Later" an advance greater than zero is required. It never exceeds gross.
func ValidateAdvance(gross decimal.Decimal, advance, mode string) (decimal.Decimal, FieldErrors) {
	amount, ok := ParseAmount(advance)
	if mode == enum.PaymentModePayLater {
		switch {
		case !ok || amount.IsNegative():
			return decimal.Zero, nil
		case amount.GreaterThan(gross):
			return decimal.Zero, FieldErrors{FieldAdvancePayment: "advance payment cannot exceed the order total"}
		}
		return amount, nil
	}
	switch {
	case !ok:
		return decimal.Zero, FieldErrors{FieldAdvancePayment: "advance payment is required"}
	case !amount.IsPositive():
		return decimal.Zero, FieldErrors{FieldAdvancePayment: "advance payment must be greater than 0"}
	case amount.GreaterThan(gross):
		return decimal.Zero, FieldErrors{FieldAdvancePayment: "advance payment cannot exceed the order total"}
	}
	return amount, nil
}

// Status derives the stored payment status.
func Status(mode string, remaining decimal.Decimal) string {
	if remaining.IsZero() {
		return enum.PaymentStatusPaid
	}
	if mode == enum.PaymentModePayLater {
		return enum.PaymentStatusScheduled
	}
	return enum.PaymentStatusPartial
}

// IsValidMode reports whether mode is one of the three selectable modes.
func IsValidMode(mode string) bool {
	switch mode {
	case enum.PaymentModePayNow, enum.PaymentModePayLater, enum.PaymentModePartial:
		return true
	}
	return false
}

func nonNegative(s string) decimal.Decimal {
	d, ok := ParseAmount(s)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
