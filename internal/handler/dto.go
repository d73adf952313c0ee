package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/tailorbook/api/internal/measurement"
	"github.com/tailorbook/api/internal/order"
)

type fieldResponse struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Unit     string `json:"unit"`
	Required bool   `json:"required"`
}

type presetResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Fields    []fieldResponse `json:"fields"`
	BasePrice *string         `json:"base_price"`
}

func toPresetResponse(p order.Preset) presetResponse {
	fields := make([]fieldResponse, len(p.Fields))
	for i, f := range p.Fields {
		fields[i] = fieldResponse{Name: f.Name, Label: f.Label, Unit: f.Unit, Required: f.Required}
	}
	return presetResponse{
		ID:        p.ID,
		Name:      p.Name,
		Fields:    fields,
		BasePrice: nullDecimalString(p.BasePrice),
	}
}

type customerResponse struct {
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email"`
}

func toCustomerResponses(cs []order.Customer) []customerResponse {
	out := make([]customerResponse, len(cs))
	for i, c := range cs {
		out[i] = customerResponse{Name: c.Name, Phone: c.Phone, Email: c.Email}
	}
	return out
}

type paymentResponse struct {
	GrossAmount     string  `json:"gross_amount"`
	AdvancePayment  *string `json:"advance_payment"`
	Discount        *string `json:"discount"`
	PaymentMode     string  `json:"payment_mode,omitempty"`
	CashPaymentMode string  `json:"cash_payment_mode,omitempty"`
	PaymentStatus   string  `json:"payment_status,omitempty"`
	PayNow          *string `json:"pay_now"`
	Remaining       string  `json:"remaining"`
	PayLaterEnabled bool    `json:"pay_later_enabled"`
	PayLaterAmount  *string `json:"pay_later_amount"`
	PayLaterDate    *string `json:"pay_later_date"`
}

type orderResponse struct {
	ID            uuid.UUID               `json:"id"`
	InvoiceNumber string                  `json:"invoice_number,omitempty"`
	Status        string                  `json:"status"`
	CustomerName  string                  `json:"customer_name"`
	CustomerPhone string                  `json:"customer_phone"`
	CustomerEmail *string                 `json:"customer_email"`
	DueDate       *string                 `json:"due_date"`
	IsManualBill  bool                    `json:"is_manual_bill"`
	Items         []order.LineItemPayload `json:"items"`
	OrderType     string                  `json:"order_type,omitempty"`
	Measurements  order.Measurements      `json:"measurements,omitempty"`
	Payment       paymentResponse         `json:"payment"`
	CreatedBy     uuid.UUID               `json:"created_by"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func toOrderResponse(o order.Order) orderResponse {
	items := o.Items
	if items == nil {
		items = []order.LineItemPayload{}
	}
	p := o.Payment
	return orderResponse{
		ID:            o.ID,
		InvoiceNumber: o.InvoiceNumber,
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		CustomerEmail: o.CustomerEmail,
		DueDate:       o.DueDate,
		IsManualBill:  o.IsManualBill,
		Items:         items,
		OrderType:     o.OrderType,
		Measurements:  o.Measurements,
		Payment: paymentResponse{
			GrossAmount:     decimalString(p.GrossAmount),
			AdvancePayment:  nullDecimalString(p.AdvancePayment),
			Discount:        nullDecimalString(p.Discount),
			PaymentMode:     p.PaymentMode,
			CashPaymentMode: p.CashPaymentMode,
			PaymentStatus:   p.PaymentStatus,
			PayNow:          nullDecimalString(p.PayNow),
			Remaining:       decimalString(p.Remaining),
			PayLaterEnabled: p.PayLaterEnabled,
			PayLaterAmount:  nullDecimalString(p.PayLaterAmount),
			PayLaterDate:    p.PayLaterDate,
		},
		CreatedBy: o.CreatedBy,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

type matchResponse struct {
	Measurements map[string]string `json:"measurements"`
	Source       string            `json:"source"`
	PresetID     *uuid.UUID        `json:"preset_id,omitempty"`
}

func toMatchResponse(m *measurement.Match) *matchResponse {
	if m == nil {
		return nil
	}
	resp := &matchResponse{Measurements: m.Measurements, Source: m.Source}
	if m.PresetID.Valid {
		id := m.PresetID.UUID
		resp.PresetID = &id
	}
	return resp
}

type itemResponse struct {
	GarmentType       string             `json:"garment_type"`
	Quantity          int                `json:"quantity"`
	PricePerItem      *string            `json:"price_per_item"`
	TotalPrice        string             `json:"total_price"`
	PresetID          *uuid.UUID         `json:"preset_id"`
	PresetName        string             `json:"preset_name,omitempty"`
	Measurements      order.Measurements `json:"measurements"`
	ExtraMeasurements order.Measurements `json:"extra_measurements"`
	Notes             *string            `json:"notes"`
	IsCustomType      bool               `json:"is_custom_type"`
	Suggestion        *matchResponse     `json:"suggestion"`
}

type formResponse struct {
	Mode            string `json:"payment_mode"`
	CashPaymentMode string `json:"cash_payment_mode"`
	DiscountAmount  string `json:"discount_amount"`
	PayNowAmount    string `json:"pay_now_amount"`
	PayLaterDate    string `json:"pay_later_date"`
	AdvancePayment  string `json:"advance_payment"`
}

type summaryResponse struct {
	Gross        string `json:"gross"`
	Discount     string `json:"discount"`
	FinalPayable string `json:"final_payable"`
	PayNow       string `json:"pay_now"`
	Remaining    string `json:"remaining"`
}

type resultResponse struct {
	Order             orderResponse `json:"order"`
	Invoice           string        `json:"invoice"`
	LeftoverDraftID   *uuid.UUID    `json:"leftover_draft_id,omitempty"`
	DraftCleanupError string        `json:"draft_cleanup_error,omitempty"`
}

func toResultResponse(r *order.SubmitResult) *resultResponse {
	if r == nil {
		return nil
	}
	resp := &resultResponse{Order: toOrderResponse(r.Order), Invoice: r.Invoice}
	if r.LeftoverDraft.Valid {
		id := r.LeftoverDraft.UUID
		resp.LeftoverDraftID = &id
	}
	if r.DraftCleanupErr != nil {
		resp.DraftCleanupError = r.DraftCleanupErr.Error()
	}
	return resp
}

type intakeResponse struct {
	ID             uuid.UUID        `json:"id"`
	State          string           `json:"state"`
	DraftPersisted bool             `json:"draft_persisted"`
	DraftID        *uuid.UUID       `json:"draft_id"`
	Mode           string           `json:"mode"`
	Customer       customerResponse `json:"customer"`
	DueDate        string           `json:"due_date"`
	Items          []itemResponse   `json:"items"`
	Payment        formResponse     `json:"payment"`
	Summary        summaryResponse  `json:"summary"`
	Result         *resultResponse  `json:"result,omitempty"`
}

func toIntakeResponse(id uuid.UUID, v order.View) intakeResponse {
	items := make([]itemResponse, len(v.Items))
	for i, it := range v.Items {
		ir := itemResponse{
			GarmentType:       it.GarmentType,
			Quantity:          it.Quantity,
			PricePerItem:      nullDecimalString(it.PricePerItem),
			TotalPrice:        decimalString(it.TotalPrice()),
			PresetName:        it.PresetName,
			Measurements:      it.Measurements,
			ExtraMeasurements: it.ExtraMeasurements,
			Notes:             it.Notes,
			IsCustomType:      it.IsCustomType,
			Suggestion:        toMatchResponse(it.Suggestion),
		}
		if it.PresetID.Valid {
			pid := it.PresetID.UUID
			ir.PresetID = &pid
		}
		items[i] = ir
	}

	resp := intakeResponse{
		ID:             id,
		State:          v.State.String(),
		DraftPersisted: v.DraftPersisted,
		Mode:           string(v.Mode),
		Customer:       customerResponse{Name: v.Customer.Name, Phone: v.Customer.Phone, Email: v.Customer.Email},
		DueDate:        v.DueDate,
		Items:          items,
		Payment: formResponse{
			Mode:            v.Payment.Mode,
			CashPaymentMode: v.Payment.CashPaymentMode,
			DiscountAmount:  v.Payment.DiscountAmount,
			PayNowAmount:    v.Payment.PayNowAmount,
			PayLaterDate:    v.Payment.PayLaterDate,
			AdvancePayment:  v.Payment.AdvancePayment,
		},
		Summary: summaryResponse{
			Gross:        decimalString(v.Summary.Gross),
			Discount:     decimalString(v.Summary.Discount),
			FinalPayable: decimalString(v.Summary.FinalPayable),
			PayNow:       decimalString(v.Summary.PayNow),
			Remaining:    decimalString(v.Summary.Remaining),
		},
		Result: toResultResponse(v.Result),
	}
	if v.DraftID.Valid {
		did := v.DraftID.UUID
		resp.DraftID = &did
	}
	return resp
}
