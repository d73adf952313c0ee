package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// SubmitResult describes a finalized order. DraftCleanupErr is set when
// the order was created but the draft it came from could not be deleted;
// the submit itself still succeeded.
type SubmitResult struct {
	Order           Order
	Invoice         string
	PromotedDraft   uuid.NullUUID
	LeftoverDraft   uuid.NullUUID
	DraftCleanupErr error
}

// SaveDraft persists the form as a draft: created the first time, updated
// after that. It is skipped (false) until customer name and phone are
// entered, while another save or a submit is running, and once submitted.
// Failures are logged and reported as false; they never block editing.
func (c *Controller) SaveDraft(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != StateEditing && c.state != StateSubmitFailed {
		c.mu.Unlock()
		return false
	}
	if c.draftSaving || strings.TrimSpace(c.customer.Name) == "" || normalizePhone(c.customer.Phone) == "" {
		c.mu.Unlock()
		return false
	}
	c.draftSaving = true
	payload := c.draftPayloadLocked()
	draftID := c.draftID
	c.mu.Unlock()

	var (
		saved Order
		err   error
	)
	if draftID.Valid {
		saved, err = c.history.UpdateOrder(ctx, draftID.UUID, payload)
	} else {
		var res *CreateResult
		res, err = c.history.CreateOrder(ctx, payload)
		if err == nil {
			saved = res.Order
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.draftSaving = false
	if err != nil {
		log.Printf("ERROR: save draft for shop %s: %v", c.session.ShopID, err)
		return false
	}
	c.draftID = uuid.NullUUID{UUID: saved.ID, Valid: true}
	c.draftPersisted = true
	return true
}

// Submit runs the submit gate and, when it passes, creates the finalized
// order. A validation failure is returned as is and moves back to Editing;
// a persistence failure moves to SubmitFailed and wraps ErrSubmitFailed. A
// draft behind the form is promoted atomically when the store supports it,
// otherwise it is deleted after the order is created. A draft that is gone
// is dropped and the order created on its own.
func (c *Controller) Submit(ctx context.Context) (*SubmitResult, error) {
	c.mu.Lock()
	switch c.state {
	case StateEmpty:
		c.mu.Unlock()
		return nil, ErrNotStarted
	case StateSaving:
		c.mu.Unlock()
		return nil, ErrBusy
	case StateSubmitted:
		c.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if c.draftSaving {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	payload, err := c.finalPayloadLocked()
	if err != nil {
		c.state = StateEditing
		c.mu.Unlock()
		return nil, err
	}
	c.state = StateSaving
	draftID := c.draftID
	c.mu.Unlock()

	res, err := c.persist(ctx, payload, draftID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateSubmitFailed
		log.Printf("ERROR: submit order for shop %s: %v", c.session.ShopID, err)
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	c.state = StateSubmitted
	c.draftID = res.LeftoverDraft
	c.draftPersisted = res.LeftoverDraft.Valid
	c.result = res
	return res, nil
}

func (c *Controller) persist(ctx context.Context, payload OrderPayload, draftID uuid.NullUUID) (*SubmitResult, error) {
	if draftID.Valid {
		if p, ok := c.history.(DraftPromoter); ok {
			cr, err := p.PromoteDraft(ctx, c.session.ShopID, draftID.UUID, payload)
			switch {
			case err == nil:
				return &SubmitResult{Order: cr.Order, Invoice: cr.Invoice, PromotedDraft: draftID}, nil
			case errors.Is(err, ErrDraftGone):
				log.Printf("WARN: draft %s for shop %s is gone, creating order without it: %v", draftID.UUID, c.session.ShopID, err)
				draftID = uuid.NullUUID{}
			default:
				return nil, fmt.Errorf("promote draft: %w", err)
			}
		}
	}

	cr, err := c.history.CreateOrder(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	res := &SubmitResult{Order: cr.Order, Invoice: cr.Invoice}
	if !draftID.Valid {
		return res, nil
	}
	if err := c.history.DeleteOrder(ctx, c.session.ShopID, draftID.UUID); err != nil {
		log.Printf("WARN: draft cleanup: order %s created but draft %s not deleted: %v", cr.Order.ID, draftID.UUID, err)
		res.LeftoverDraft = draftID
		res.DraftCleanupErr = err
		return res, nil
	}
	res.PromotedDraft = draftID
	return res, nil
}
