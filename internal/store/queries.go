package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Shop struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	CreatedAt pgtype.Timestamptz
}

type User struct {
	ID           uuid.UUID
	ShopID       uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
	CreatedAt    pgtype.Timestamptz
}

type PresetRow struct {
	ID        uuid.UUID
	ShopID    uuid.UUID
	Name      string
	Fields    []byte
	BasePrice pgtype.Numeric
	CreatedAt pgtype.Timestamptz
}

type CustomerRow struct {
	CustomerName  string
	CustomerPhone string
	CustomerEmail pgtype.Text
}

// OrderFields are the columns shared by insert and update.
type OrderFields struct {
	Status          string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   pgtype.Text
	DueDate         pgtype.Date
	IsManualBill    bool
	Items           []byte
	GrossAmount     pgtype.Numeric
	AdvancePayment  pgtype.Numeric
	Discount        pgtype.Numeric
	PaymentMode     string
	CashPaymentMode string
	PaymentStatus   string
	PayNow          pgtype.Numeric
	Remaining       pgtype.Numeric
	PayLaterEnabled bool
	PayLaterAmount  pgtype.Numeric
	PayLaterDate    pgtype.Date
}

type OrderRow struct {
	ID            uuid.UUID
	ShopID        uuid.UUID
	InvoiceSeq    pgtype.Int4
	InvoiceNumber pgtype.Text
	OrderType     pgtype.Text
	Measurements  []byte
	CreatedBy     uuid.UUID
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
	OrderFields
}

type InsertOrderParams struct {
	ShopID        uuid.UUID
	CreatedBy     uuid.UUID
	InvoiceSeq    pgtype.Int4
	InvoiceNumber pgtype.Text
	OrderFields
}

type UpdateOrderParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
	OrderFields
}

type ListOrdersParams struct {
	ShopID        uuid.UUID
	CustomerPhone string
	Limit         int32
}

type InsertPresetParams struct {
	ShopID    uuid.UUID
	Name      string
	Fields    []byte
	BasePrice pgtype.Numeric
}

type row interface {
	Scan(dest ...any) error
}

const orderColumns = `id, shop_id, status, invoice_seq, invoice_number,
	customer_name, customer_phone, customer_email, due_date, is_manual_bill,
	items, order_type, measurements, gross_amount, advance_payment, discount,
	payment_mode, cash_payment_mode, payment_status, pay_now, remaining,
	pay_later_enabled, pay_later_amount, pay_later_date, created_by,
	created_at, updated_at`

func scanOrder(r row) (OrderRow, error) {
	var o OrderRow
	err := r.Scan(
		&o.ID, &o.ShopID, &o.Status, &o.InvoiceSeq, &o.InvoiceNumber,
		&o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.DueDate, &o.IsManualBill,
		&o.Items, &o.OrderType, &o.Measurements, &o.GrossAmount, &o.AdvancePayment, &o.Discount,
		&o.PaymentMode, &o.CashPaymentMode, &o.PaymentStatus, &o.PayNow, &o.Remaining,
		&o.PayLaterEnabled, &o.PayLaterAmount, &o.PayLaterDate, &o.CreatedBy,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (f OrderFields) args() []any {
	return []any{
		f.Status, f.CustomerName, f.CustomerPhone, f.CustomerEmail, f.DueDate, f.IsManualBill,
		f.Items, f.GrossAmount, f.AdvancePayment, f.Discount,
		f.PaymentMode, f.CashPaymentMode, f.PaymentStatus, f.PayNow, f.Remaining,
		f.PayLaterEnabled, f.PayLaterAmount, f.PayLaterDate,
	}
}

const listOrders = `SELECT ` + orderColumns + `
FROM orders
WHERE shop_id = $1 AND ($2::text = '' OR customer_phone = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]OrderRow, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.ShopID, arg.CustomerPhone, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderRow
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND shop_id = $2`

func (q *Queries) GetOrder(ctx context.Context, shopID, id uuid.UUID) (OrderRow, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id, shopID))
}

func (q *Queries) GetOrderForUpdate(ctx context.Context, shopID, id uuid.UUID) (OrderRow, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder+` FOR UPDATE`, id, shopID))
}

const nextInvoiceSeq = `SELECT (COALESCE(MAX(invoice_seq), 0) + 1)::int4 FROM orders WHERE shop_id = $1`

func (q *Queries) NextInvoiceSeq(ctx context.Context, shopID uuid.UUID) (int32, error) {
	var seq int32
	err := q.db.QueryRow(ctx, nextInvoiceSeq, shopID).Scan(&seq)
	return seq, err
}

const insertOrder = `INSERT INTO orders (
	shop_id, created_by, invoice_seq, invoice_number,
	status, customer_name, customer_phone, customer_email, due_date, is_manual_bill,
	items, gross_amount, advance_payment, discount,
	payment_mode, cash_payment_mode, payment_status, pay_now, remaining,
	pay_later_enabled, pay_later_amount, pay_later_date
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
RETURNING ` + orderColumns

func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (OrderRow, error) {
	args := append([]any{arg.ShopID, arg.CreatedBy, arg.InvoiceSeq, arg.InvoiceNumber}, arg.OrderFields.args()...)
	return scanOrder(q.db.QueryRow(ctx, insertOrder, args...))
}

// Only drafts are editable.
const updateDraft = `UPDATE orders SET
	status = $3, customer_name = $4, customer_phone = $5, customer_email = $6,
	due_date = $7, is_manual_bill = $8, items = $9, gross_amount = $10,
	advance_payment = $11, discount = $12, payment_mode = $13,
	cash_payment_mode = $14, payment_status = $15, pay_now = $16, remaining = $17,
	pay_later_enabled = $18, pay_later_amount = $19, pay_later_date = $20,
	updated_at = now()
WHERE id = $1 AND shop_id = $2 AND status = 'Draft'
RETURNING ` + orderColumns

func (q *Queries) UpdateDraft(ctx context.Context, arg UpdateOrderParams) (OrderRow, error) {
	args := append([]any{arg.ID, arg.ShopID}, arg.OrderFields.args()...)
	return scanOrder(q.db.QueryRow(ctx, updateDraft, args...))
}

const deleteOrder = `DELETE FROM orders WHERE id = $1 AND shop_id = $2`

func (q *Queries) DeleteOrder(ctx context.Context, shopID, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteOrder, id, shopID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Latest name and email per phone number.
const listCustomers = `SELECT DISTINCT ON (customer_phone) customer_name, customer_phone, customer_email
FROM orders
WHERE shop_id = $1 AND customer_phone <> '' AND customer_name <> ''
ORDER BY customer_phone, created_at DESC`

func (q *Queries) ListCustomers(ctx context.Context, shopID uuid.UUID) ([]CustomerRow, error) {
	rows, err := q.db.Query(ctx, listCustomers, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CustomerRow
	for rows.Next() {
		var c CustomerRow
		if err := rows.Scan(&c.CustomerName, &c.CustomerPhone, &c.CustomerEmail); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const listPresets = `SELECT id, shop_id, name, fields, base_price, created_at
FROM measurement_presets WHERE shop_id = $1 ORDER BY name`

func (q *Queries) ListPresets(ctx context.Context, shopID uuid.UUID) ([]PresetRow, error) {
	rows, err := q.db.Query(ctx, listPresets, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PresetRow
	for rows.Next() {
		var p PresetRow
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Fields, &p.BasePrice, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const insertPreset = `INSERT INTO measurement_presets (shop_id, name, fields, base_price)
VALUES ($1, $2, $3, $4)
RETURNING id, shop_id, name, fields, base_price, created_at`

func (q *Queries) InsertPreset(ctx context.Context, arg InsertPresetParams) (PresetRow, error) {
	var p PresetRow
	err := q.db.QueryRow(ctx, insertPreset, arg.ShopID, arg.Name, arg.Fields, arg.BasePrice).
		Scan(&p.ID, &p.ShopID, &p.Name, &p.Fields, &p.BasePrice, &p.CreatedAt)
	return p, err
}

const getUserByEmail = `SELECT id, shop_id, email, password_hash, full_name, role, is_active, created_at
FROM users WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `SELECT id, shop_id, email, password_hash, full_name, role, is_active, created_at
FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

func scanUser(r row) (User, error) {
	var u User
	err := r.Scan(&u.ID, &u.ShopID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt)
	return u, err
}

type CreateUserParams struct {
	ShopID       uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
}

const createUser = `INSERT INTO users (shop_id, email, password_hash, full_name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, shop_id, email, password_hash, full_name, role, is_active, created_at`

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser, arg.ShopID, arg.Email, arg.PasswordHash, arg.FullName, arg.Role))
}

const getShopByName = `SELECT id, name, phone, created_at FROM shops WHERE name = $1`

func (q *Queries) GetShopByName(ctx context.Context, name string) (Shop, error) {
	var s Shop
	err := q.db.QueryRow(ctx, getShopByName, name).Scan(&s.ID, &s.Name, &s.Phone, &s.CreatedAt)
	return s, err
}

const createShop = `INSERT INTO shops (name, phone) VALUES ($1, $2) RETURNING id, name, phone, created_at`

func (q *Queries) CreateShop(ctx context.Context, name, phone string) (Shop, error) {
	var s Shop
	err := q.db.QueryRow(ctx, createShop, name, phone).Scan(&s.ID, &s.Name, &s.Phone, &s.CreatedAt)
	return s, err
}
