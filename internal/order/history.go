package order

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/tailorbook/api/internal/enum"
	"github.com/tailorbook/api/internal/measurement"
)

// RefreshHistory fetches the customer's past orders and recomputes the
// per-item suggestions. Each call takes a new request token; if a newer
// fetch was issued, or the phone or a garment type changed while this one
// was in flight, the result is dropped and ErrStaleHistory returned.
func (c *Controller) RefreshHistory(ctx context.Context) error {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	phone := normalizePhone(c.customer.Phone)
	if phone == "" {
		c.past = nil
		c.mu.Unlock()
		return nil
	}
	c.historySeq++
	token := c.historySeq
	exclude := c.draftID
	c.mu.Unlock()

	orders, err := c.history.GetOrders(ctx, c.session.ShopID, OrderFilter{
		CustomerPhone: phone,
		Limit:         historyLimit,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.historySeq {
		return ErrStaleHistory
	}
	if err != nil {
		return fmt.Errorf("get order history: %w", err)
	}

	past := make([]measurement.PastOrder, 0, len(orders))
	for _, o := range orders {
		if o.Status == enum.OrderStatusDraft || (exclude.Valid && o.ID == exclude.UUID) {
			continue
		}
		past = append(past, toPastOrder(o))
	}
	c.past = past
	for i := range c.items {
		c.items[i].Suggestion = c.suggestLocked(c.items[i].GarmentType)
	}
	return nil
}

func (c *Controller) suggestLocked(garmentType string) *measurement.Match {
	if len(c.past) == 0 {
		return nil
	}
	return c.strategy.Find(garmentType, c.past)
}

func toPastOrder(o Order) measurement.PastOrder {
	ref := o.InvoiceNumber
	if ref == "" {
		ref = o.ID.String()
	}
	p := measurement.PastOrder{
		Ref:          ref,
		OrderType:    o.OrderType,
		Measurements: o.Measurements,
		Items:        make([]measurement.PastItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		pi := measurement.PastItem{GarmentType: it.GarmentType}
		if it.Measurements != nil {
			pi.Measurements = *it.Measurements
		}
		if it.MeasurementPresetID != nil {
			pi.PresetID.UUID = *it.MeasurementPresetID
			pi.PresetID.Valid = true
		}
		p.Items = append(p.Items, pi)
	}
	return p
}

// SuggestCustomers returns up to limit known customers whose name or
// phone contains query, ignoring case and spaces.
func (c *Controller) SuggestCustomers(query string, limit int) []Customer {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}
	qPhone := normalizePhone(q)

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Customer
	for _, cust := range c.customerList {
		if strings.Contains(strings.ToLower(cust.Name), q) ||
			(qPhone != "" && strings.Contains(normalizePhone(cust.Phone), qPhone)) {
			out = append(out, cust)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// normalizePhone strips all whitespace.
func normalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
