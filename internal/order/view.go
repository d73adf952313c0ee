package order

import (
	"github.com/google/uuid"

	"github.com/tailorbook/api/internal/measurement"
	"github.com/tailorbook/api/internal/payment"
)

// View is a point-in-time copy of the controller, safe to read without locking.
type View struct {
	State          State
	DraftPersisted bool
	DraftID        uuid.NullUUID
	Mode           EntryMode
	Customer       Customer
	DueDate        string
	Items          []LineItem
	Payment        PaymentForm
	Summary        payment.Summary
	Presets        []Preset
	Result         *SubmitResult
}

// Snapshot returns the current form.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]LineItem, len(c.items))
	for i, it := range c.items {
		cp := it
		cp.Measurements = cloneMeasurements(it.Measurements)
		cp.ExtraMeasurements = cloneMeasurements(it.ExtraMeasurements)
		if it.Notes != nil {
			notes := *it.Notes
			cp.Notes = &notes
		}
		if it.Suggestion != nil {
			s := *it.Suggestion
			s.Measurements = cloneMeasurements(it.Suggestion.Measurements)
			cp.Suggestion = &s
		}
		items[i] = cp
	}
	presets := make([]Preset, len(c.presetList))
	copy(presets, c.presetList)

	return View{
		State:          c.state,
		DraftPersisted: c.draftPersisted,
		DraftID:        c.draftID,
		Mode:           c.mode,
		Customer:       c.customer,
		DueDate:        c.dueDate,
		Items:          items,
		Payment:        c.pay,
		Summary:        c.summaryLocked(),
		Presets:        presets,
		Result:         c.result,
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Suggestion returns the pending history suggestion for item idx, if any.
func (c *Controller) Suggestion(idx int) *measurement.Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= len(c.items) || c.items[idx].Suggestion == nil {
		return nil
	}
	s := *c.items[idx].Suggestion
	s.Measurements = cloneMeasurements(c.items[idx].Suggestion.Measurements)
	return &s
}
