package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tailorbook/api/internal/enum"
	"github.com/tailorbook/api/internal/order"
)

const (
	maxInvoiceRetries = 3

	defaultOrderLimit = 20
	maxOrderLimit     = 100
)

var (
	ErrNotFound      = errors.New("not found")
	ErrPresetExists  = errors.New("a preset with this name already exists")
	ErrInvalidStatus = errors.New("status must be Draft or OrderCreated")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Querier is the SQL the repository needs. Satisfied by *Queries.
type Querier interface {
	ListPresets(ctx context.Context, shopID uuid.UUID) ([]PresetRow, error)
	InsertPreset(ctx context.Context, arg InsertPresetParams) (PresetRow, error)
	ListCustomers(ctx context.Context, shopID uuid.UUID) ([]CustomerRow, error)
	ListOrders(ctx context.Context, arg ListOrdersParams) ([]OrderRow, error)
	GetOrder(ctx context.Context, shopID, id uuid.UUID) (OrderRow, error)
	GetOrderForUpdate(ctx context.Context, shopID, id uuid.UUID) (OrderRow, error)
	NextInvoiceSeq(ctx context.Context, shopID uuid.UUID) (int32, error)
	InsertOrder(ctx context.Context, arg InsertOrderParams) (OrderRow, error)
	UpdateDraft(ctx context.Context, arg UpdateOrderParams) (OrderRow, error)
	DeleteOrder(ctx context.Context, shopID, id uuid.UUID) (int64, error)
}

// NewQuerier creates a Querier bound to a pool or transaction.
type NewQuerier func(db DBTX) Querier

// Repository implements the order package's preset catalog, customer
// directory and order history on Postgres, including atomic draft promotion.
type Repository struct {
	pool       TxBeginner
	q          Querier
	newQuerier NewQuerier
}

func NewRepository(pool TxBeginner, q Querier, newQuerier NewQuerier) *Repository {
	return &Repository{pool: pool, q: q, newQuerier: newQuerier}
}

// NewPostgres wires a Repository to a pgx pool.
func NewPostgres(pool interface {
	TxBeginner
	DBTX
}) *Repository {
	return NewRepository(pool, New(pool), func(db DBTX) Querier { return New(db) })
}

var (
	_ order.PresetCatalog     = (*Repository)(nil)
	_ order.CustomerDirectory = (*Repository)(nil)
	_ order.OrderHistory      = (*Repository)(nil)
	_ order.DraftPromoter     = (*Repository)(nil)
)

func (r *Repository) GetPresets(ctx context.Context, shopID uuid.UUID) ([]order.Preset, error) {
	rows, err := r.q.ListPresets(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	out := make([]order.Preset, 0, len(rows))
	for _, row := range rows {
		p, err := toPreset(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// CreatePreset stores a new preset. Names are unique per shop.
func (r *Repository) CreatePreset(ctx context.Context, p order.Preset) (order.Preset, error) {
	fields, err := json.Marshal(p.Fields)
	if err != nil {
		return order.Preset{}, fmt.Errorf("encode preset fields: %w", err)
	}
	row, err := r.q.InsertPreset(ctx, InsertPresetParams{
		ShopID:    p.ShopID,
		Name:      p.Name,
		Fields:    fields,
		BasePrice: nullToNumeric(p.BasePrice),
	})
	if err != nil {
		if isUniqueViolation(err, "measurement_presets_shop_id_name_key") {
			return order.Preset{}, ErrPresetExists
		}
		return order.Preset{}, fmt.Errorf("insert preset: %w", err)
	}
	return toPreset(row)
}

func toPreset(row PresetRow) (order.Preset, error) {
	var fields []order.Field
	if len(row.Fields) > 0 {
		if err := json.Unmarshal(row.Fields, &fields); err != nil {
			return order.Preset{}, fmt.Errorf("preset %s: decode fields: %w", row.ID, err)
		}
	}
	return order.Preset{
		ID:        row.ID,
		ShopID:    row.ShopID,
		Name:      row.Name,
		Fields:    fields,
		BasePrice: numericToNull(row.BasePrice),
	}, nil
}

func (r *Repository) GetCustomers(ctx context.Context, shopID uuid.UUID) ([]order.Customer, error) {
	rows, err := r.q.ListCustomers(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make([]order.Customer, len(rows))
	for i, row := range rows {
		out[i] = order.Customer{
			Name:  row.CustomerName,
			Phone: row.CustomerPhone,
			Email: textPtr(row.CustomerEmail),
		}
	}
	return out, nil
}

// GetOrders returns the shop's orders newest first.
func (r *Repository) GetOrders(ctx context.Context, shopID uuid.UUID, filter order.OrderFilter) ([]order.Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOrderLimit
	}
	if limit > maxOrderLimit {
		limit = maxOrderLimit
	}
	rows, err := r.q.ListOrders(ctx, ListOrdersParams{
		ShopID:        shopID,
		CustomerPhone: filter.CustomerPhone,
		Limit:         int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		o, err := toOrder(row)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *Repository) GetOrder(ctx context.Context, shopID, id uuid.UUID) (order.Order, error) {
	row, err := r.q.GetOrder(ctx, shopID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, ErrNotFound
		}
		return order.Order{}, fmt.Errorf("get order: %w", err)
	}
	return toOrder(row)
}

// GetDraft loads an order by id. Callers check that it is still a draft.
func (r *Repository) GetDraft(ctx context.Context, shopID, draftID uuid.UUID) (order.Order, error) {
	return r.GetOrder(ctx, shopID, draftID)
}

// CreateOrder stores a draft or a finalized order. Finalized orders get
// the shop's next invoice number; allocation is retried when a concurrent
// insert took the same number.
func (r *Repository) CreateOrder(ctx context.Context, p order.OrderPayload) (*order.CreateResult, error) {
	fields, err := orderFields(p)
	if err != nil {
		return nil, err
	}
	if p.Status == enum.OrderStatusDraft {
		row, err := r.q.InsertOrder(ctx, InsertOrderParams{
			ShopID:      p.ShopID,
			CreatedBy:   p.CreatedBy,
			OrderFields: fields,
		})
		if err != nil {
			return nil, fmt.Errorf("insert draft: %w", err)
		}
		o, err := toOrder(row)
		if err != nil {
			return nil, err
		}
		return &order.CreateResult{Order: o}, nil
	}

	return r.withInvoiceRetry(ctx, func(q Querier) (*order.CreateResult, error) {
		return insertFinal(ctx, q, p, fields)
	})
}

// PromoteDraft creates the finalized order and deletes its draft in one
// transaction; either both happen or neither does. A draft that is missing or
// already finalized is reported as order.ErrDraftGone.
func (r *Repository) PromoteDraft(ctx context.Context, shopID, draftID uuid.UUID, p order.OrderPayload) (*order.CreateResult, error) {
	if p.Status != enum.OrderStatusOrderCreated {
		return nil, ErrInvalidStatus
	}
	fields, err := orderFields(p)
	if err != nil {
		return nil, err
	}
	return r.withInvoiceRetry(ctx, func(q Querier) (*order.CreateResult, error) {
		draft, err := q.GetOrderForUpdate(ctx, shopID, draftID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %w", order.ErrDraftGone, ErrNotFound)
			}
			return nil, fmt.Errorf("lock draft: %w", err)
		}
		if draft.Status != enum.OrderStatusDraft {
			return nil, fmt.Errorf("%w: %w", order.ErrDraftGone, order.ErrNotDraft)
		}
		res, err := insertFinal(ctx, q, p, fields)
		if err != nil {
			return nil, err
		}
		if _, err := q.DeleteOrder(ctx, shopID, draftID); err != nil {
			return nil, fmt.Errorf("delete draft: %w", err)
		}
		return res, nil
	})
}

// withInvoiceRetry runs fn in a transaction, retrying up to
// maxInvoiceRetries times on invoice number conflicts.
func (r *Repository) withInvoiceRetry(ctx context.Context, fn func(q Querier) (*order.CreateResult, error)) (*order.CreateResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxInvoiceRetries; attempt++ {
		res, err := r.inTx(ctx, fn)
		if err == nil {
			return res, nil
		}
		if isInvoiceConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (r *Repository) inTx(ctx context.Context, fn func(q Querier) (*order.CreateResult, error)) (*order.CreateResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	res, err := fn(r.newQuerier(tx))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return res, nil
}

func insertFinal(ctx context.Context, q Querier, p order.OrderPayload, fields OrderFields) (*order.CreateResult, error) {
	seq, err := q.NextInvoiceSeq(ctx, p.ShopID)
	if err != nil {
		return nil, fmt.Errorf("next invoice number: %w", err)
	}
	invoice := fmt.Sprintf("INV-%04d", seq)
	row, err := q.InsertOrder(ctx, InsertOrderParams{
		ShopID:        p.ShopID,
		CreatedBy:     p.CreatedBy,
		InvoiceSeq:    pgtype.Int4{Int32: seq, Valid: true},
		InvoiceNumber: pgtype.Text{String: invoice, Valid: true},
		OrderFields:   fields,
	})
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	o, err := toOrder(row)
	if err != nil {
		return nil, err
	}
	return &order.CreateResult{Order: o, Invoice: invoice}, nil
}

// UpdateOrder overwrites a draft. Finalized orders are never updated.
func (r *Repository) UpdateOrder(ctx context.Context, id uuid.UUID, p order.OrderPayload) (order.Order, error) {
	if p.Status != enum.OrderStatusDraft {
		return order.Order{}, ErrInvalidStatus
	}
	fields, err := orderFields(p)
	if err != nil {
		return order.Order{}, err
	}
	row, err := r.q.UpdateDraft(ctx, UpdateOrderParams{ID: id, ShopID: p.ShopID, OrderFields: fields})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, ErrNotFound
		}
		return order.Order{}, fmt.Errorf("update draft: %w", err)
	}
	return toOrder(row)
}

func (r *Repository) DeleteOrder(ctx context.Context, shopID, id uuid.UUID) error {
	n, err := r.q.DeleteOrder(ctx, shopID, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isInvoiceConflict(err error) bool {
	return isUniqueViolation(err, "orders_shop_id_invoice_seq_key")
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

func orderFields(p order.OrderPayload) (OrderFields, error) {
	switch p.Status {
	case enum.OrderStatusDraft, enum.OrderStatusOrderCreated:
	default:
		return OrderFields{}, ErrInvalidStatus
	}
	items := p.Items
	if items == nil {
		items = []order.LineItemPayload{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return OrderFields{}, fmt.Errorf("encode items: %w", err)
	}
	pay := p.Payment
	return OrderFields{
		Status:          p.Status,
		CustomerName:    p.CustomerName,
		CustomerPhone:   p.CustomerPhone,
		CustomerEmail:   ptrText(p.CustomerEmail),
		DueDate:         isoToDate(p.DueDate),
		IsManualBill:    p.IsManualBill,
		Items:           raw,
		GrossAmount:     decimalToNumeric(pay.GrossAmount),
		AdvancePayment:  nullToNumeric(pay.AdvancePayment),
		Discount:        nullToNumeric(pay.Discount),
		PaymentMode:     pay.PaymentMode,
		CashPaymentMode: pay.CashPaymentMode,
		PaymentStatus:   pay.PaymentStatus,
		PayNow:          nullToNumeric(pay.PayNow),
		Remaining:       decimalToNumeric(pay.Remaining),
		PayLaterEnabled: pay.PayLaterEnabled,
		PayLaterAmount:  nullToNumeric(pay.PayLaterAmount),
		PayLaterDate:    isoToDate(pay.PayLaterDate),
	}, nil
}

func toOrder(row OrderRow) (order.Order, error) {
	var items []order.LineItemPayload
	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &items); err != nil {
			return order.Order{}, fmt.Errorf("order %s: decode items: %w", row.ID, err)
		}
	}
	var legacy order.Measurements
	if len(row.Measurements) > 0 {
		if err := json.Unmarshal(row.Measurements, &legacy); err != nil {
			return order.Order{}, fmt.Errorf("order %s: decode measurements: %w", row.ID, err)
		}
	}
	o := order.Order{
		OrderPayload: order.OrderPayload{
			ShopID:        row.ShopID,
			CreatedBy:     row.CreatedBy,
			Status:        row.Status,
			CustomerName:  row.CustomerName,
			CustomerPhone: row.CustomerPhone,
			CustomerEmail: textPtr(row.CustomerEmail),
			DueDate:       dateToISO(row.DueDate),
			IsManualBill:  row.IsManualBill,
			Items:         items,
			Payment: order.PaymentFields{
				GrossAmount:     numericToDecimal(row.GrossAmount),
				AdvancePayment:  numericToNull(row.AdvancePayment),
				Discount:        numericToNull(row.Discount),
				PaymentMode:     row.PaymentMode,
				CashPaymentMode: row.CashPaymentMode,
				PaymentStatus:   row.PaymentStatus,
				PayNow:          numericToNull(row.PayNow),
				Remaining:       numericToDecimal(row.Remaining),
				PayLaterEnabled: row.PayLaterEnabled,
				PayLaterAmount:  numericToNull(row.PayLaterAmount),
				PayLaterDate:    dateToISO(row.PayLaterDate),
			},
		},
		ID:           row.ID,
		OrderType:    row.OrderType.String,
		Measurements: legacy,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
	if row.InvoiceNumber.Valid {
		o.InvoiceNumber = row.InvoiceNumber.String
	}
	return o, nil
}
