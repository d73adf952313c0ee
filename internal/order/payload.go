package order

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tailorbook/api/internal/dates"
	"github.com/tailorbook/api/internal/enum"
	"github.com/tailorbook/api/internal/payment"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)

// loadDraftLocked fills the form from a stored draft.
func (c *Controller) loadDraftLocked(o Order) {
	c.draftID = uuid.NullUUID{UUID: o.ID, Valid: true}
	c.draftPersisted = true
	c.customer = Customer{Name: o.CustomerName, Phone: o.CustomerPhone, Email: o.CustomerEmail}
	c.mode = EntryModeMeasurement
	if o.IsManualBill {
		c.mode = EntryModeManual
	}
	c.dueDate = ""
	if o.DueDate != nil {
		if d, err := dates.FromISO(*o.DueDate); err == nil {
			c.dueDate = d
		}
	}

	c.items = make([]LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		li := LineItem{
			GarmentType:  it.GarmentType,
			Quantity:     it.Quantity,
			Notes:        it.Notes,
			IsCustomType: it.IsCustomType,
		}
		if li.GarmentType == enum.GarmentTypeUnspecified {
			li.GarmentType = ""
		}
		if li.Quantity < 1 {
			li.Quantity = 1
		}
		if it.PricePerItem.IsPositive() {
			li.PricePerItem = decimal.NewNullDecimal(it.PricePerItem)
		}
		if it.MeasurementPresetID != nil {
			li.PresetID = uuid.NullUUID{UUID: *it.MeasurementPresetID, Valid: true}
		}
		if it.PresetName != nil {
			li.PresetName = *it.PresetName
		}
		if it.Measurements != nil {
			li.Measurements = cloneMeasurements(*it.Measurements)
		}
		if it.ExtraMeasurements != nil {
			li.ExtraMeasurements = cloneMeasurements(*it.ExtraMeasurements)
		}
		c.items = append(c.items, li)
	}

	p := o.Payment
	c.pay = PaymentForm{
		Mode:            p.PaymentMode,
		CashPaymentMode: p.CashPaymentMode,
		DiscountAmount:  nullString(p.Discount),
		PayNowAmount:    nullString(p.PayNow),
		AdvancePayment:  nullString(p.AdvancePayment),
	}
	if p.PayLaterDate != nil {
		if d, err := dates.FromISO(*p.PayLaterDate); err == nil {
			c.pay.PayLaterDate = d
		}
	}
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func nullAmount(raw string) decimal.NullDecimal {
	d, ok := payment.ParseAmount(raw)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func cloneMeasurements(m Measurements) Measurements {
	if m == nil {
		return nil
	}
	out := make(Measurements, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// draftPayloadLocked builds the relaxed draft payload: whatever has been
// entered, with an empty garment type saved as "Unspecified" and a
// missing price as 0. Unparsable dates are left out.
func (c *Controller) draftPayloadLocked() OrderPayload {
	p := OrderPayload{
		ShopID:        c.session.ShopID,
		CreatedBy:     c.session.UserID,
		Status:        enum.OrderStatusDraft,
		CustomerName:  strings.TrimSpace(c.customer.Name),
		CustomerPhone: normalizePhone(c.customer.Phone),
		CustomerEmail: emailPtr(c.customer.Email),
		IsManualBill:  c.mode == EntryModeManual,
		Items:         make([]LineItemPayload, 0, len(c.items)),
	}
	if iso, err := dates.ToISO(c.dueDate); err == nil {
		p.DueDate = &iso
	}
	for _, it := range c.items {
		lp := itemPayload(it, true)
		if lp.GarmentType == "" {
			lp.GarmentType = enum.GarmentTypeUnspecified
		}
		p.Items = append(p.Items, lp)
	}

	s := c.summaryLocked()
	p.Payment = PaymentFields{
		GrossAmount:     s.Gross,
		PaymentMode:     c.pay.Mode,
		CashPaymentMode: c.pay.CashPaymentMode,
		Remaining:       s.Remaining,
		PaymentStatus:   payment.Status(c.pay.Mode, s.Remaining),
	}
	if c.mode == EntryModeManual {
		p.Payment.Discount = nullAmount(c.pay.DiscountAmount)
		p.Payment.PayNow = nullAmount(c.pay.PayNowAmount)
		p.Payment.PayLaterEnabled = c.pay.Mode != "" && c.pay.Mode != enum.PaymentModePayNow
		if iso, err := dates.ToISO(c.pay.PayLaterDate); err == nil {
			p.Payment.PayLaterDate = &iso
		}
	} else {
		p.Payment.AdvancePayment = nullAmount(c.pay.AdvancePayment)
	}
	return p
}

// finalPayloadLocked runs the submit gate and builds the finalized order.
// Checks run in a fixed order and the first failure is returned: customer
// name, phone, due date (measurement mode), payment, then items.
func (c *Controller) finalPayloadLocked() (OrderPayload, error) {
	name := strings.TrimSpace(c.customer.Name)
	if name == "" {
		return OrderPayload{}, invalid("customerName", ErrCustomerName)
	}
	phone := normalizePhone(c.customer.Phone)
	if !phonePattern.MatchString(phone) {
		return OrderPayload{}, invalid("customerPhone", ErrCustomerPhone)
	}

	p := OrderPayload{
		ShopID:        c.session.ShopID,
		CreatedBy:     c.session.UserID,
		Status:        enum.OrderStatusOrderCreated,
		CustomerName:  name,
		CustomerPhone: phone,
		CustomerEmail: emailPtr(c.customer.Email),
		IsManualBill:  c.mode == EntryModeManual,
	}

	if c.mode == EntryModeMeasurement {
		if c.dueDate == "" {
			return OrderPayload{}, invalid("dueDate", ErrDueDate)
		}
		iso, err := dates.ToISO(c.dueDate)
		if err != nil {
			return OrderPayload{}, invalid("dueDate", ErrInvalidDate)
		}
		p.DueDate = &iso
	}

	gross := c.grossLocked()
	if c.mode == EntryModeManual {
		pl, errs := c.reconciler.Reconcile(payment.Input{
			Gross:           gross,
			DiscountAmount:  c.pay.DiscountAmount,
			Mode:            c.pay.Mode,
			PayNowAmount:    c.pay.PayNowAmount,
			PayLaterDate:    c.pay.PayLaterDate,
			CashPaymentMode: c.pay.CashPaymentMode,
		})
		if len(errs) > 0 {
			return OrderPayload{}, errs
		}
		p.Payment = PaymentFields{
			GrossAmount:     gross,
			Discount:        decimal.NewNullDecimal(pl.Discount),
			PaymentMode:     pl.PaymentMode,
			CashPaymentMode: pl.CashPaymentMode,
			PaymentStatus:   pl.PaymentStatus,
			PayNow:          decimal.NewNullDecimal(pl.PayNow),
			Remaining:       pl.Remaining,
			PayLaterEnabled: pl.PayLaterEnabled,
			PayLaterDate:    pl.PayLaterDate,
		}
		if pl.PayLaterEnabled {
			p.Payment.PayLaterAmount = decimal.NewNullDecimal(pl.PayLaterAmount)
		}
	} else {
		advance, errs := payment.ValidateAdvance(gross, c.pay.AdvancePayment, c.pay.Mode)
		if len(errs) > 0 {
			return OrderPayload{}, errs
		}
		remaining := gross.Sub(advance)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		p.Payment = PaymentFields{
			GrossAmount:     gross,
			AdvancePayment:  decimal.NewNullDecimal(advance),
			PaymentMode:     c.pay.Mode,
			CashPaymentMode: c.pay.CashPaymentMode,
			PaymentStatus:   payment.Status(c.pay.Mode, remaining),
			PayNow:          decimal.NewNullDecimal(advance),
			Remaining:       remaining,
		}
	}

	if len(c.items) == 0 {
		return OrderPayload{}, invalid("items", ErrLastItem)
	}
	p.Items = make([]LineItemPayload, 0, len(c.items))
	for i, it := range c.items {
		if strings.TrimSpace(it.GarmentType) == "" {
			return OrderPayload{}, invalid(itemField(i, "garmentType"), ErrGarmentType)
		}
		if !it.PricePerItem.Valid || !it.PricePerItem.Decimal.IsPositive() {
			return OrderPayload{}, invalid(itemField(i, "pricePerItem"), ErrPrice)
		}
		if it.Quantity < 1 {
			return OrderPayload{}, invalid(itemField(i, "quantity"), ErrQuantity)
		}
		if c.mode == EntryModeMeasurement && it.PresetID.Valid {
			if pr, ok := c.presetLocked(it.PresetID.UUID); ok {
				for _, f := range pr.Fields {
					if f.Required && strings.TrimSpace(it.Measurements[f.Name]) == "" {
						return OrderPayload{}, invalid(itemField(i, "measurements."+f.Name), ErrMeasurementValue)
					}
				}
			}
		}
		p.Items = append(p.Items, itemPayload(it, c.mode == EntryModeMeasurement))
	}
	return p, nil
}

// itemPayload converts a form item. Measurement sets are only carried when
// withMeasurements is set; a nil set is omitted while an empty one is kept.
func itemPayload(it LineItem, withMeasurements bool) LineItemPayload {
	price := decimal.Zero
	if it.PricePerItem.Valid {
		price = it.PricePerItem.Decimal
	}
	lp := LineItemPayload{
		GarmentType:  strings.TrimSpace(it.GarmentType),
		Quantity:     it.Quantity,
		PricePerItem: price,
		TotalPrice:   it.TotalPrice(),
		IsCustomType: it.IsCustomType,
	}
	if it.PresetID.Valid {
		id := it.PresetID.UUID
		lp.MeasurementPresetID = &id
		lp.PresetName = optional(it.PresetName)
	}
	if it.Notes != nil {
		notes := *it.Notes
		lp.Notes = &notes
	}
	if withMeasurements {
		if it.Measurements != nil {
			m := cloneMeasurements(it.Measurements)
			lp.Measurements = &m
		}
		if it.ExtraMeasurements != nil {
			m := cloneMeasurements(it.ExtraMeasurements)
			lp.ExtraMeasurements = &m
		}
	}
	return lp
}

func emailPtr(email *string) *string {
	if email == nil {
		return nil
	}
	return optional(*email)
}
