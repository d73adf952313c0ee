package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tailorbook/api/internal/enum"
	"github.com/tailorbook/api/internal/payment"
)

// --- Mock implementations ---

type mockPresets struct {
	getPresetsFn func(ctx context.Context, shopID uuid.UUID) ([]Preset, error)
}

func (m *mockPresets) GetPresets(ctx context.Context, shopID uuid.UUID) ([]Preset, error) {
	return m.getPresetsFn(ctx, shopID)
}

type mockCustomers struct {
	getCustomersFn func(ctx context.Context, shopID uuid.UUID) ([]Customer, error)
}

func (m *mockCustomers) GetCustomers(ctx context.Context, shopID uuid.UUID) ([]Customer, error) {
	return m.getCustomersFn(ctx, shopID)
}

// mockHistory implements OrderHistory. Unset functions fail the call so
// unexpected network traffic shows up as an error.
type mockHistory struct {
	mu          sync.Mutex
	getOrdersFn func(ctx context.Context, shopID uuid.UUID, f OrderFilter) ([]Order, error)
	getDraftFn  func(ctx context.Context, shopID, id uuid.UUID) (Order, error)
	createFn    func(ctx context.Context, p OrderPayload) (*CreateResult, error)
	updateFn    func(ctx context.Context, id uuid.UUID, p OrderPayload) (Order, error)
	deleteFn    func(ctx context.Context, shopID, id uuid.UUID) error
	calls       []string
}

var errUnexpected = errors.New("unexpected call")

func (m *mockHistory) record(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
}

func (m *mockHistory) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockHistory) GetOrders(ctx context.Context, shopID uuid.UUID, f OrderFilter) ([]Order, error) {
	m.record("GetOrders")
	if m.getOrdersFn == nil {
		return nil, errUnexpected
	}
	return m.getOrdersFn(ctx, shopID, f)
}

func (m *mockHistory) GetDraft(ctx context.Context, shopID, id uuid.UUID) (Order, error) {
	m.record("GetDraft")
	if m.getDraftFn == nil {
		return Order{}, errUnexpected
	}
	return m.getDraftFn(ctx, shopID, id)
}

func (m *mockHistory) CreateOrder(ctx context.Context, p OrderPayload) (*CreateResult, error) {
	m.record("CreateOrder")
	if m.createFn == nil {
		return nil, errUnexpected
	}
	return m.createFn(ctx, p)
}

func (m *mockHistory) UpdateOrder(ctx context.Context, id uuid.UUID, p OrderPayload) (Order, error) {
	m.record("UpdateOrder")
	if m.updateFn == nil {
		return Order{}, errUnexpected
	}
	return m.updateFn(ctx, id, p)
}

func (m *mockHistory) DeleteOrder(ctx context.Context, shopID, id uuid.UUID) error {
	m.record("DeleteOrder")
	if m.deleteFn == nil {
		return errUnexpected
	}
	return m.deleteFn(ctx, shopID, id)
}

// mockPromoter adds atomic draft promotion to mockHistory.
type mockPromoter struct {
	*mockHistory
	promoteFn func(ctx context.Context, shopID, draftID uuid.UUID, p OrderPayload) (*CreateResult, error)
}

func (m *mockPromoter) PromoteDraft(ctx context.Context, shopID, draftID uuid.UUID, p OrderPayload) (*CreateResult, error) {
	m.record("PromoteDraft")
	return m.promoteFn(ctx, shopID, draftID, p)
}

// --- Test helpers ---

var (
	testShopID   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testUserID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	kurtaPreset  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	blousePreset = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	testNow      = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
)

func testPresets() []Preset {
	return []Preset{
		{
			ID:     kurtaPreset,
			ShopID: testShopID,
			Name:   "Kurta",
			Fields: []Field{
				{Name: "chest", Label: "Chest", Unit: enum.FieldUnitInches, Required: true},
				{Name: "length", Label: "Length", Unit: enum.FieldUnitInches, Required: true},
				{Name: "sleeve", Label: "Sleeve", Unit: enum.FieldUnitInches},
			},
			BasePrice: decimal.NewNullDecimal(decimal.NewFromInt(800)),
		},
		{
			ID:     blousePreset,
			ShopID: testShopID,
			Name:   "Blouse",
			Fields: []Field{{Name: "bust", Label: "Bust", Unit: enum.FieldUnitInches, Required: true}},
		},
	}
}

func newTestController(t *testing.T, h OrderHistory) *Controller {
	t.Helper()
	c := NewController(
		Session{ShopID: testShopID, UserID: testUserID, Token: "tok"},
		Deps{
			Presets: &mockPresets{getPresetsFn: func(ctx context.Context, shopID uuid.UUID) ([]Preset, error) {
				return testPresets(), nil
			}},
			Customers: &mockCustomers{getCustomersFn: func(ctx context.Context, shopID uuid.UUID) ([]Customer, error) {
				return []Customer{
					{Name: "Asha Rao", Phone: "9876543210"},
					{Name: "Vikram Shah", Phone: "9123456780"},
				}, nil
			}},
			History:    h,
			Reconciler: payment.NewReconciler(time.UTC, func() time.Time { return testNow }),
		},
	)
	return c
}

func startNew(t *testing.T, c *Controller, mode EntryMode) {
	t.Helper()
	if err := c.Start(context.Background(), uuid.NullUUID{}, mode); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// fillValidMeasurementOrder leaves c ready to submit in measurement mode.
func fillValidMeasurementOrder(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.SetCustomer(Customer{Name: "Asha Rao", Phone: "98765 43210"}); err != nil {
		t.Fatalf("SetCustomer: %v", err)
	}
	if err := c.SetDueDate("25/10/2026"); err != nil {
		t.Fatalf("SetDueDate: %v", err)
	}
	if _, err := c.SelectPreset(0, kurtaPreset); err != nil {
		t.Fatalf("SelectPreset: %v", err)
	}
	for field, v := range map[string]string{"chest": "40", "length": "42"} {
		if err := c.SetMeasurement(0, field, v); err != nil {
			t.Fatalf("SetMeasurement(%s): %v", field, err)
		}
	}
	if err := c.SetPayment(PaymentForm{Mode: enum.PaymentModePartial, AdvancePayment: "300", CashPaymentMode: enum.CashModeUPI}); err != nil {
		t.Fatalf("SetPayment: %v", err)
	}
}

func createOK(invoice string) func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
	return func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
		o := Order{OrderPayload: p, ID: uuid.New(), InvoiceNumber: invoice}
		return &CreateResult{Order: o, Invoice: invoice}, nil
	}
}

// --- Start ---

func TestStart_NewOrderHasOneBlankItem(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")

	v := c.Snapshot()
	if v.State != StateEditing {
		t.Errorf("state = %v, want editing", v.State)
	}
	if v.Mode != EntryModeMeasurement {
		t.Errorf("mode = %q, want measurement", v.Mode)
	}
	if len(v.Items) != 1 || v.Items[0].Quantity != 1 {
		t.Fatalf("items = %+v, want one blank item with quantity 1", v.Items)
	}
	if v.DraftPersisted {
		t.Error("new order should not be marked persisted")
	}
	if len(v.Presets) != 2 {
		t.Errorf("presets = %d, want 2", len(v.Presets))
	}
}

func TestStart_Twice(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, EntryModeManual)
	err := c.Start(context.Background(), uuid.NullUUID{}, EntryModeManual)
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("err = %v, want ErrAlreadyStarted", err)
	}
}

func TestStart_InvalidMode(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	err := c.Start(context.Background(), uuid.NullUUID{}, "tailor")
	if !errors.Is(err, ErrInvalidMode) {
		t.Errorf("err = %v, want ErrInvalidMode", err)
	}
}

func TestStart_LoadsDraft(t *testing.T) {
	draftID := uuid.New()
	due := "2026-10-25"
	later := "2026-11-01"
	m := Measurements{"chest": "38"}
	h := &mockHistory{
		getDraftFn: func(ctx context.Context, shopID, id uuid.UUID) (Order, error) {
			if shopID != testShopID || id != draftID {
				t.Errorf("GetDraft(%s, %s)", shopID, id)
			}
			return Order{
				ID: id,
				OrderPayload: OrderPayload{
					Status:        enum.OrderStatusDraft,
					CustomerName:  "Asha Rao",
					CustomerPhone: "9876543210",
					DueDate:       &due,
					IsManualBill:  true,
					Items: []LineItemPayload{
						{GarmentType: enum.GarmentTypeUnspecified, Quantity: 2, PricePerItem: decimal.Zero},
						{GarmentType: "Kurta", Quantity: 1, PricePerItem: decimal.NewFromInt(900), MeasurementPresetID: &kurtaPreset, Measurements: &m},
					},
					Payment: PaymentFields{
						PaymentMode:  enum.PaymentModePartial,
						PayNow:       decimal.NewNullDecimal(decimal.NewFromInt(100)),
						PayLaterDate: &later,
					},
				},
			}, nil
		},
	}
	c := newTestController(t, h)
	if err := c.Start(context.Background(), uuid.NullUUID{UUID: draftID, Valid: true}, EntryModeMeasurement); err != nil {
		t.Fatalf("Start: %v", err)
	}

	v := c.Snapshot()
	if !v.DraftPersisted || v.DraftID.UUID != draftID {
		t.Errorf("draft = %v/%v, want persisted %s", v.DraftPersisted, v.DraftID, draftID)
	}
	if v.Mode != EntryModeManual {
		t.Errorf("mode = %q, want manual from draft", v.Mode)
	}
	if v.DueDate != "25/10/2026" {
		t.Errorf("due date = %q, want 25/10/2026", v.DueDate)
	}
	if len(v.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(v.Items))
	}
	if v.Items[0].GarmentType != "" || v.Items[0].PricePerItem.Valid {
		t.Errorf("placeholder item = %+v, want empty garment and unset price", v.Items[0])
	}
	if !v.Items[1].PresetID.Valid || v.Items[1].Measurements["chest"] != "38" {
		t.Errorf("preset item = %+v", v.Items[1])
	}
	if v.Payment.PayNowAmount != "100" || v.Payment.PayLaterDate != "01/11/2026" {
		t.Errorf("payment form = %+v", v.Payment)
	}
}

func TestStart_RejectsFinalizedOrder(t *testing.T) {
	h := &mockHistory{
		getDraftFn: func(ctx context.Context, shopID, id uuid.UUID) (Order, error) {
			return Order{ID: id, OrderPayload: OrderPayload{Status: enum.OrderStatusOrderCreated}}, nil
		},
	}
	c := newTestController(t, h)
	err := c.Start(context.Background(), uuid.NullUUID{UUID: uuid.New(), Valid: true}, "")
	if !errors.Is(err, ErrNotDraft) {
		t.Fatalf("err = %v, want ErrNotDraft", err)
	}
	if c.State() != StateEmpty {
		t.Errorf("state = %v, want empty", c.State())
	}
}

func TestStart_CustomerDirectoryFailureIsTolerated(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	c.customers = &mockCustomers{getCustomersFn: func(ctx context.Context, shopID uuid.UUID) ([]Customer, error) {
		return nil, errors.New("timeout")
	}}
	startNew(t, c, "")
	if got := c.SuggestCustomers("asha", 5); len(got) != 0 {
		t.Errorf("suggestions = %v, want none", got)
	}
}

func TestStart_PresetFailure(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	c.presets = &mockPresets{getPresetsFn: func(ctx context.Context, shopID uuid.UUID) ([]Preset, error) {
		return nil, errors.New("connection refused")
	}}
	if err := c.Start(context.Background(), uuid.NullUUID{}, ""); err == nil {
		t.Fatal("expected error")
	}
}

// --- Edits ---

func TestEdits_BeforeStart(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	if _, err := c.AddItem(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("AddItem err = %v, want ErrNotStarted", err)
	}
}

func TestRemoveItem_LastItemRejected(t *testing.T) {
	h := &mockHistory{}
	c := newTestController(t, h)
	startNew(t, c, "")

	err := c.RemoveItem(0)
	if !errors.Is(err, ErrLastItem) {
		t.Fatalf("err = %v, want ErrLastItem", err)
	}
	if err.Error() != "items: You must have at least one item" {
		t.Errorf("message = %q", err.Error())
	}
	if n := len(c.Snapshot().Items); n != 1 {
		t.Errorf("items = %d, want 1", n)
	}
	if h.callCount() != 0 {
		t.Errorf("network calls = %v, want none", h.calls)
	}
}

func TestRemoveItem(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")
	idx, err := c.AddItem()
	if err != nil || idx != 1 {
		t.Fatalf("AddItem = %d, %v", idx, err)
	}
	if err := c.UpdateItem(1, ItemEdit{GarmentType: strPtr("Pant")}); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveItem(0); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	items := c.Snapshot().Items
	if len(items) != 1 || items[0].GarmentType != "Pant" {
		t.Errorf("items = %+v", items)
	}
	if err := c.RemoveItem(5); !errors.Is(err, ErrItemIndex) {
		t.Errorf("err = %v, want ErrItemIndex", err)
	}
}

func TestUpdateItem_Validation(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")

	if err := c.UpdateItem(0, ItemEdit{Quantity: intPtr(0)}); !errors.Is(err, ErrQuantity) {
		t.Errorf("quantity err = %v", err)
	}
	if err := c.UpdateItem(0, ItemEdit{PricePerItem: strPtr("-5")}); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("price err = %v", err)
	}
	// A bad field leaves the others untouched.
	_ = c.UpdateItem(0, ItemEdit{Quantity: intPtr(3), PricePerItem: strPtr("abc")})
	if q := c.Snapshot().Items[0].Quantity; q != 1 {
		t.Errorf("quantity = %d, want 1 after rejected edit", q)
	}

	if err := c.UpdateItem(0, ItemEdit{Quantity: intPtr(3), PricePerItem: strPtr("1,250"), Notes: strPtr("")}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	it := c.Snapshot().Items[0]
	if !it.TotalPrice().Equal(decimal.NewFromInt(3750)) {
		t.Errorf("total = %s, want 3750", it.TotalPrice())
	}
	if it.Notes == nil || *it.Notes != "" {
		t.Errorf("notes = %v, want explicit empty", it.Notes)
	}
}

func TestSelectPreset_FillsFieldsAndBasePrice(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")

	match, err := c.SelectPreset(0, kurtaPreset)
	if err != nil {
		t.Fatalf("SelectPreset: %v", err)
	}
	if match != nil {
		t.Errorf("match = %+v, want nil without history", match)
	}
	it := c.Snapshot().Items[0]
	if it.GarmentType != "Kurta" || it.IsCustomType {
		t.Errorf("item = %+v", it)
	}
	if len(it.Measurements) != 3 || it.Measurements["chest"] != "" {
		t.Errorf("measurements = %v, want three empty preset fields", it.Measurements)
	}
	if !it.PricePerItem.Valid || !it.PricePerItem.Decimal.Equal(decimal.NewFromInt(800)) {
		t.Errorf("price = %v, want base price 800", it.PricePerItem)
	}
}

func TestSelectPreset_KeepsExistingPrice(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")
	if err := c.UpdateItem(0, ItemEdit{PricePerItem: strPtr("650")}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SelectPreset(0, kurtaPreset); err != nil {
		t.Fatal(err)
	}
	if p := c.Snapshot().Items[0].PricePerItem; !p.Decimal.Equal(decimal.NewFromInt(650)) {
		t.Errorf("price = %s, want 650 kept", p.Decimal)
	}
}

func TestSelectPreset_Unknown(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")
	if _, err := c.SelectPreset(0, uuid.New()); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("err = %v, want ErrUnknownPreset", err)
	}
}

func historyWithKurta() *mockHistory {
	return &mockHistory{
		getOrdersFn: func(ctx context.Context, shopID uuid.UUID, f OrderFilter) ([]Order, error) {
			m := Measurements{"chest": "40", "length": "44", "collar": "15"}
			return []Order{
				{ID: uuid.New(), InvoiceNumber: "INV-0009", OrderPayload: OrderPayload{Status: enum.OrderStatusDraft,
					Items: []LineItemPayload{{GarmentType: "Kurta", Measurements: &Measurements{"chest": "99"}}}}},
				{ID: uuid.New(), InvoiceNumber: "INV-0007", OrderPayload: OrderPayload{Status: enum.OrderStatusOrderCreated,
					Items: []LineItemPayload{{GarmentType: "Silk Kurta", Measurements: &m}}}},
			}, nil
		},
	}
}

func TestRefreshHistory_SuggestsButDoesNotApply(t *testing.T) {
	h := historyWithKurta()
	var gotFilter OrderFilter
	inner := h.getOrdersFn
	h.getOrdersFn = func(ctx context.Context, shopID uuid.UUID, f OrderFilter) ([]Order, error) {
		gotFilter = f
		return inner(ctx, shopID, f)
	}
	c := newTestController(t, h)
	startNew(t, c, "")
	_ = c.SetCustomer(Customer{Name: "Asha", Phone: "98765 43210"})
	_ = c.SetGarmentType(0, "kurta")

	if err := c.RefreshHistory(context.Background()); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}
	if gotFilter.CustomerPhone != "9876543210" || gotFilter.Limit != historyLimit {
		t.Errorf("filter = %+v", gotFilter)
	}
	s := c.Suggestion(0)
	if s == nil {
		t.Fatal("expected suggestion")
	}
	if s.Measurements["chest"] != "40" {
		t.Errorf("suggestion chest = %q, want 40 (drafts are skipped)", s.Measurements["chest"])
	}
	if s.Source != "Silk Kurta (INV-0007)" {
		t.Errorf("source = %q", s.Source)
	}
	if len(c.Snapshot().Items[0].Measurements) != 0 {
		t.Error("suggestion must not be applied automatically")
	}

	if _, err := c.ApplySuggestion(0); err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}
	if got := c.Snapshot().Items[0].Measurements["collar"]; got != "15" {
		t.Errorf("custom item collar = %q, want 15", got)
	}
	if _, err := c.ApplySuggestion(0); !errors.Is(err, ErrNoSuggestion) {
		t.Errorf("second apply err = %v, want ErrNoSuggestion", err)
	}
}

func TestSelectPreset_AutofillSplitsExtras(t *testing.T) {
	c := newTestController(t, historyWithKurta())
	startNew(t, c, "")
	_ = c.SetCustomer(Customer{Name: "Asha", Phone: "9876543210"})
	if err := c.RefreshHistory(context.Background()); err != nil {
		t.Fatal(err)
	}

	match, err := c.SelectPreset(0, kurtaPreset)
	if err != nil {
		t.Fatal(err)
	}
	if match == nil {
		t.Fatal("expected autofill match")
	}
	it := c.Snapshot().Items[0]
	if it.Measurements["chest"] != "40" || it.Measurements["length"] != "44" || it.Measurements["sleeve"] != "" {
		t.Errorf("measurements = %v", it.Measurements)
	}
	if _, ok := it.Measurements["collar"]; ok {
		t.Error("collar is not a preset field")
	}
	if it.ExtraMeasurements["collar"] != "15" {
		t.Errorf("extras = %v, want collar", it.ExtraMeasurements)
	}
}

func TestRefreshHistory_StaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	h := historyWithKurta()
	inner := h.getOrdersFn
	h.getOrdersFn = func(ctx context.Context, shopID uuid.UUID, f OrderFilter) ([]Order, error) {
		close(entered)
		<-release
		return inner(ctx, shopID, f)
	}
	c := newTestController(t, h)
	startNew(t, c, "")
	_ = c.SetCustomer(Customer{Name: "Asha", Phone: "9876543210"})
	_ = c.SetGarmentType(0, "Kurta")

	done := make(chan error, 1)
	go func() { done <- c.RefreshHistory(context.Background()) }()
	<-entered
	if err := c.SetGarmentType(0, "Kurta Pajama"); err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrStaleHistory) {
		t.Fatalf("err = %v, want ErrStaleHistory", err)
	}
	if c.Suggestion(0) != nil {
		t.Error("stale history must not produce suggestions")
	}
}

func TestRefreshHistory_NoPhone(t *testing.T) {
	h := &mockHistory{}
	c := newTestController(t, h)
	startNew(t, c, "")
	if err := c.RefreshHistory(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.callCount() != 0 {
		t.Errorf("calls = %v, want none without a phone", h.calls)
	}
}

func TestSetMeasurement_PresetKeys(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")
	if _, err := c.SelectPreset(0, blousePreset); err != nil {
		t.Fatal(err)
	}
	if err := c.SetMeasurement(0, "waist", "30"); !errors.Is(err, ErrMeasurementField) {
		t.Errorf("err = %v, want ErrMeasurementField", err)
	}
	if err := c.SetExtraMeasurement(0, "waist", "30"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetMeasurement(0, "bust", " 34 "); err != nil {
		t.Fatal(err)
	}
	it := c.Snapshot().Items[0]
	if it.Measurements["bust"] != "34" || it.ExtraMeasurements["waist"] != "30" {
		t.Errorf("item = %+v", it)
	}
	if err := c.SetExtraMeasurement(0, "waist", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Snapshot().Items[0].ExtraMeasurements["waist"]; ok {
		t.Error("empty value should remove the extra measurement")
	}
}

func TestUseCustomType_ClearsPreset(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")
	_, _ = c.SelectPreset(0, kurtaPreset)
	if err := c.UseCustomType(0, " Sherwani "); err != nil {
		t.Fatal(err)
	}
	it := c.Snapshot().Items[0]
	if it.PresetID.Valid || !it.IsCustomType || it.GarmentType != "Sherwani" || len(it.Measurements) != 0 {
		t.Errorf("item = %+v", it)
	}
	if err := c.SetMeasurement(0, "anything", "1"); err != nil {
		t.Errorf("custom items accept any key: %v", err)
	}
}

func TestSuggestCustomers(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")

	tests := []struct {
		query string
		want  int
	}{
		{"asha", 1},
		{"SHAH", 1},
		{"98", 1},
		{"91234 56", 1},
		{"", 0},
		{"zzz", 0},
	}
	for _, tt := range tests {
		if got := c.SuggestCustomers(tt.query, 10); len(got) != tt.want {
			t.Errorf("SuggestCustomers(%q) = %v, want %d", tt.query, got, tt.want)
		}
	}
	if got := c.SuggestCustomers("a", 1); len(got) != 1 {
		t.Errorf("limit not applied: %v", got)
	}
}

func TestPaymentSummary(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, EntryModeManual)
	_ = c.UpdateItem(0, ItemEdit{GarmentType: strPtr("Alteration"), Quantity: intPtr(2), PricePerItem: strPtr("500")})
	_ = c.SetPayment(PaymentForm{Mode: enum.PaymentModePartial, DiscountAmount: "100", PayNowAmount: "400"})

	s := c.PaymentSummary()
	if !s.FinalPayable.Equal(decimal.NewFromInt(900)) || !s.Remaining.Equal(decimal.NewFromInt(500)) {
		t.Errorf("summary = %+v", s)
	}

	_ = c.SetMode(EntryModeMeasurement)
	_ = c.SetPayment(PaymentForm{AdvancePayment: "250"})
	s = c.PaymentSummary()
	if !s.FinalPayable.Equal(decimal.NewFromInt(1000)) || !s.Remaining.Equal(decimal.NewFromInt(750)) {
		t.Errorf("measurement summary = %+v", s)
	}
}

// --- Draft save ---

func TestSaveDraft_SkippedWithoutCustomer(t *testing.T) {
	h := &mockHistory{}
	c := newTestController(t, h)
	startNew(t, c, "")
	_ = c.SetCustomer(Customer{Name: "Asha"})
	if c.SaveDraft(context.Background()) {
		t.Error("SaveDraft should skip without phone")
	}
	if h.callCount() != 0 {
		t.Errorf("calls = %v", h.calls)
	}
}

func TestSaveDraft_CreateThenUpdate(t *testing.T) {
	draftID := uuid.New()
	var created OrderPayload
	var updatedID uuid.UUID
	h := &mockHistory{
		createFn: func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
			created = p
			return &CreateResult{Order: Order{ID: draftID, OrderPayload: p}}, nil
		},
		updateFn: func(ctx context.Context, id uuid.UUID, p OrderPayload) (Order, error) {
			updatedID = id
			return Order{ID: id, OrderPayload: p}, nil
		},
	}
	c := newTestController(t, h)
	startNew(t, c, "")
	_ = c.SetCustomer(Customer{Name: "Asha", Phone: "98765"})
	_ = c.SetDueDate("31/02/2026")

	if !c.SaveDraft(context.Background()) {
		t.Fatal("first save failed")
	}
	if created.Status != enum.OrderStatusDraft {
		t.Errorf("status = %q, want Draft", created.Status)
	}
	if created.DueDate != nil {
		t.Errorf("due date = %v, want omitted for invalid date", *created.DueDate)
	}
	if len(created.Items) != 1 || created.Items[0].GarmentType != enum.GarmentTypeUnspecified || !created.Items[0].PricePerItem.IsZero() {
		t.Errorf("items = %+v, want Unspecified placeholder priced 0", created.Items)
	}
	if created.ShopID != testShopID || created.CreatedBy != testUserID {
		t.Errorf("session not applied: %+v", created)
	}
	v := c.Snapshot()
	if !v.DraftPersisted || v.DraftID.UUID != draftID {
		t.Errorf("draft = %v %v", v.DraftPersisted, v.DraftID)
	}

	if !c.SaveDraft(context.Background()) {
		t.Fatal("second save failed")
	}
	if updatedID != draftID {
		t.Errorf("updated %s, want %s", updatedID, draftID)
	}
}

func TestSaveDraft_FailureDoesNotBlockEditing(t *testing.T) {
	h := &mockHistory{
		createFn: func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
			return nil, errors.New("network down")
		},
	}
	c := newTestController(t, h)
	startNew(t, c, "")
	_ = c.SetCustomer(Customer{Name: "Asha", Phone: "9876543210"})
	if c.SaveDraft(context.Background()) {
		t.Error("SaveDraft should report failure")
	}
	v := c.Snapshot()
	if v.State != StateEditing || v.DraftPersisted {
		t.Errorf("state = %v persisted = %v", v.State, v.DraftPersisted)
	}
	if _, err := c.AddItem(); err != nil {
		t.Errorf("editing blocked after failed save: %v", err)
	}
}

// --- Submit ---

func TestSubmit_GateOrder(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(c *Controller)
		wantErr error
		field   string
	}{
		{
			name:    "missing name",
			setup:   func(c *Controller) { _ = c.SetCustomer(Customer{Name: " ", Phone: "bad"}) },
			wantErr: ErrCustomerName,
			field:   "customerName",
		},
		{
			name:    "short phone",
			setup:   func(c *Controller) { _ = c.SetCustomer(Customer{Name: "Asha", Phone: "12345"}) },
			wantErr: ErrCustomerPhone,
			field:   "customerPhone",
		},
		{
			name:    "missing due date",
			setup:   func(c *Controller) { _ = c.SetDueDate("") },
			wantErr: ErrDueDate,
			field:   "dueDate",
		},
		{
			name:    "bad due date",
			setup:   func(c *Controller) { _ = c.SetDueDate("2026-10-25x") },
			wantErr: ErrInvalidDate,
			field:   "dueDate",
		},
		{
			name:    "blank garment on second item",
			setup:   func(c *Controller) { _, _ = c.AddItem() },
			wantErr: ErrGarmentType,
			field:   "items[1].garmentType",
		},
		{
			name: "zero price",
			setup: func(c *Controller) {
				_ = c.UpdateItem(0, ItemEdit{PricePerItem: strPtr("0")})
				_ = c.SetPayment(PaymentForm{Mode: enum.PaymentModePayLater})
			},
			wantErr: ErrPrice,
			field:   "items[0].pricePerItem",
		},
		{
			name:    "required measurement",
			setup:   func(c *Controller) { _ = c.SetMeasurement(0, "length", "") },
			wantErr: ErrMeasurementValue,
			field:   "items[0].measurements.length",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &mockHistory{}
			c := newTestController(t, h)
			startNew(t, c, "")
			fillValidMeasurementOrder(t, c)
			tt.setup(c)

			_, err := c.Submit(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("field = %v, want %s", err, tt.field)
			}
			if h.callCount() != 0 {
				t.Errorf("calls = %v, want none", h.calls)
			}
			if c.State() != StateEditing {
				t.Errorf("state = %v, want editing", c.State())
			}
		})
	}
}

func TestSubmit_AdvanceRequired(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")
	fillValidMeasurementOrder(t, c)
	_ = c.SetPayment(PaymentForm{Mode: enum.PaymentModePartial, AdvancePayment: ""})

	_, err := c.Submit(context.Background())
	var fe payment.FieldErrors
	if !errors.As(err, &fe) || fe[payment.FieldAdvancePayment] == "" {
		t.Fatalf("err = %v, want advancePayment field error", err)
	}
	if !IsValidation(err) {
		t.Error("IsValidation = false")
	}
}

func TestSubmit_ZeroItems(t *testing.T) {
	h := &mockHistory{}
	c := newTestController(t, h)
	startNew(t, c, "")
	fillValidMeasurementOrder(t, c)
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
	_ = c.SetPayment(PaymentForm{Mode: enum.PaymentModePayLater})

	_, err := c.Submit(context.Background())
	if !errors.Is(err, ErrLastItem) {
		t.Fatalf("err = %v, want ErrLastItem", err)
	}
	if h.callCount() != 0 {
		t.Errorf("calls = %v, want none", h.calls)
	}
}

func TestSubmit_MeasurementOrder(t *testing.T) {
	var got OrderPayload
	h := &mockHistory{createFn: func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
		got = p
		return createOK("INV-0012")(ctx, p)
	}}
	c := newTestController(t, h)
	startNew(t, c, "")
	fillValidMeasurementOrder(t, c)

	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Invoice != "INV-0012" || res.DraftCleanupErr != nil {
		t.Errorf("result = %+v", res)
	}
	if got.Status != enum.OrderStatusOrderCreated || got.CustomerPhone != "9876543210" {
		t.Errorf("payload = %+v", got)
	}
	if got.DueDate == nil || *got.DueDate != "2026-10-25" {
		t.Errorf("due date = %v", got.DueDate)
	}
	pay := got.Payment
	if !pay.GrossAmount.Equal(decimal.NewFromInt(800)) || !pay.Remaining.Equal(decimal.NewFromInt(500)) || pay.PaymentStatus != enum.PaymentStatusPartial {
		t.Errorf("payment = %+v", pay)
	}
	it := got.Items[0]
	if it.Measurements == nil || (*it.Measurements)["chest"] != "40" || it.ExtraMeasurements != nil {
		t.Errorf("item measurements = %+v", it)
	}
	if c.State() != StateSubmitted {
		t.Errorf("state = %v", c.State())
	}
	if _, err := c.AddItem(); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("edit after submit err = %v", err)
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("resubmit err = %v", err)
	}
}

func TestSubmit_ManualBillPayLater(t *testing.T) {
	var got OrderPayload
	h := &mockHistory{createFn: func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
		got = p
		return createOK("INV-0013")(ctx, p)
	}}
	c := newTestController(t, h)
	startNew(t, c, EntryModeManual)
	_ = c.SetCustomer(Customer{Name: "Asha", Phone: "9876543210"})
	_ = c.UpdateItem(0, ItemEdit{GarmentType: strPtr("Alteration"), PricePerItem: strPtr("1500")})
	_ = c.SetPayment(PaymentForm{Mode: enum.PaymentModePayLater, DiscountAmount: "200", PayNowAmount: "300", PayLaterDate: "20/10/2026"})

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.DueDate != nil || !got.IsManualBill {
		t.Errorf("manual bill payload = %+v", got)
	}
	pay := got.Payment
	if !pay.PayNow.Decimal.IsZero() || !pay.Remaining.Equal(decimal.NewFromInt(1300)) || pay.PaymentStatus != enum.PaymentStatusScheduled {
		t.Errorf("payment = %+v", pay)
	}
	if pay.PayLaterDate == nil || *pay.PayLaterDate != "2026-10-20" {
		t.Errorf("pay later date = %v", pay.PayLaterDate)
	}
	if got.Items[0].Measurements != nil {
		t.Error("manual bills carry no measurements")
	}
}

func TestSubmit_DraftCleanupFailure(t *testing.T) {
	draftID := uuid.New()
	h := &mockHistory{
		createFn: func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
			if p.Status == enum.OrderStatusDraft {
				return &CreateResult{Order: Order{ID: draftID, OrderPayload: p}}, nil
			}
			return createOK("INV-0014")(ctx, p)
		},
		deleteFn: func(ctx context.Context, shopID, id uuid.UUID) error {
			return errors.New("timeout")
		},
	}
	c := newTestController(t, h)
	startNew(t, c, "")
	fillValidMeasurementOrder(t, c)
	if !c.SaveDraft(context.Background()) {
		t.Fatal("SaveDraft failed")
	}

	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit should succeed despite cleanup failure: %v", err)
	}
	if res.DraftCleanupErr == nil || res.LeftoverDraft.UUID != draftID {
		t.Errorf("result = %+v, want leftover draft reported", res)
	}
	if res.Invoice != "INV-0014" {
		t.Errorf("invoice = %q", res.Invoice)
	}
	if c.State() != StateSubmitted {
		t.Errorf("state = %v", c.State())
	}
}

func TestSubmit_PromotesDraftAtomically(t *testing.T) {
	draftID := uuid.New()
	base := &mockHistory{
		createFn: func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
			return &CreateResult{Order: Order{ID: draftID, OrderPayload: p}}, nil
		},
	}
	var promoted uuid.UUID
	h := &mockPromoter{
		mockHistory: base,
		promoteFn: func(ctx context.Context, shopID, id uuid.UUID, p OrderPayload) (*CreateResult, error) {
			promoted = id
			if p.Status != enum.OrderStatusOrderCreated {
				t.Errorf("status = %q", p.Status)
			}
			return createOK("INV-0015")(ctx, p)
		},
	}
	c := newTestController(t, h)
	startNew(t, c, "")
	fillValidMeasurementOrder(t, c)
	if !c.SaveDraft(context.Background()) {
		t.Fatal("SaveDraft failed")
	}

	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if promoted != draftID || res.PromotedDraft.UUID != draftID {
		t.Errorf("promoted %s, want %s", promoted, draftID)
	}
	for _, call := range base.calls {
		if call == "DeleteOrder" {
			t.Error("DeleteOrder should not run when the store promotes drafts")
		}
	}
	if v := c.Snapshot(); v.DraftPersisted || v.DraftID.Valid {
		t.Errorf("draft still referenced: %+v", v.DraftID)
	}
}

func TestUpdateItem_RejectsUnstorablePrice(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")

	for _, price := range []string{"1e3", "1e13", "1e-99999999", "12.345", "10000000000"} {
		t.Run(price, func(t *testing.T) {
			if err := c.UpdateItem(0, ItemEdit{PricePerItem: strPtr(price)}); !errors.Is(err, ErrInvalidPrice) {
				t.Errorf("err = %v, want ErrInvalidPrice", err)
			}
		})
	}
}

func TestPaymentSummary_ExponentAmountsCountAsZero(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, EntryModeManual)
	if err := c.UpdateItem(0, ItemEdit{GarmentType: strPtr("Shirt"), PricePerItem: strPtr("1000")}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if err := c.SetPayment(PaymentForm{
		Mode:           enum.PaymentModePartial,
		DiscountAmount: "1e99999999",
		PayNowAmount:   "1e-99999999",
	}); err != nil {
		t.Fatalf("SetPayment: %v", err)
	}

	done := make(chan payment.Summary, 1)
	go func() { done <- c.PaymentSummary() }()
	select {
	case s := <-done:
		if !s.Discount.IsZero() || !s.PayNow.IsZero() || !s.Remaining.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("summary = %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("PaymentSummary did not return")
	}
}

func TestSubmit_DraftGoneCreatesOrder(t *testing.T) {
	draftID := uuid.New()
	base := &mockHistory{
		createFn: func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
			if p.Status == enum.OrderStatusDraft {
				return &CreateResult{Order: Order{ID: draftID, OrderPayload: p}}, nil
			}
			return createOK("INV-0017")(ctx, p)
		},
	}
	h := &mockPromoter{
		mockHistory: base,
		promoteFn: func(ctx context.Context, shopID, id uuid.UUID, p OrderPayload) (*CreateResult, error) {
			return nil, fmt.Errorf("%w: not found", ErrDraftGone)
		},
	}
	c := newTestController(t, h)
	startNew(t, c, "")
	fillValidMeasurementOrder(t, c)
	if !c.SaveDraft(context.Background()) {
		t.Fatal("SaveDraft failed")
	}

	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Invoice != "INV-0017" {
		t.Errorf("invoice = %q", res.Invoice)
	}
	if res.PromotedDraft.Valid || res.LeftoverDraft.Valid {
		t.Errorf("result = %+v, want no draft reference", res)
	}
	want := []string{"CreateOrder", "PromoteDraft", "CreateOrder"}
	if fmt.Sprint(base.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", base.calls, want)
	}
	if v := c.Snapshot(); v.DraftPersisted || v.DraftID.Valid {
		t.Errorf("draft still referenced: %+v", v.DraftID)
	}
}

func TestSubmit_PromoteFailureKeepsDraft(t *testing.T) {
	draftID := uuid.New()
	base := &mockHistory{
		createFn: func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
			return &CreateResult{Order: Order{ID: draftID, OrderPayload: p}}, nil
		},
	}
	h := &mockPromoter{
		mockHistory: base,
		promoteFn: func(ctx context.Context, shopID, id uuid.UUID, p OrderPayload) (*CreateResult, error) {
			return nil, errors.New("connection reset")
		},
	}
	c := newTestController(t, h)
	startNew(t, c, "")
	fillValidMeasurementOrder(t, c)
	if !c.SaveDraft(context.Background()) {
		t.Fatal("SaveDraft failed")
	}

	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("err = %v, want ErrSubmitFailed", err)
	}
	if v := c.Snapshot(); !v.DraftID.Valid || v.DraftID.UUID != draftID {
		t.Errorf("draft id = %+v, want %s kept for retry", v.DraftID, draftID)
	}
}

func TestSubmit_ValidationAfterFailureReturnsToEditing(t *testing.T) {
	c := newTestController(t, &mockHistory{})
	startNew(t, c, "")
	fillValidMeasurementOrder(t, c)
	_ = c.SetDueDate("")
	c.mu.Lock()
	c.state = StateSubmitFailed
	c.mu.Unlock()

	_, err := c.Submit(context.Background())
	if !errors.Is(err, ErrDueDate) {
		t.Fatalf("err = %v, want ErrDueDate", err)
	}
	if c.State() != StateEditing {
		t.Errorf("state = %v, want editing", c.State())
	}
}

func TestSubmit_FailureThenRetry(t *testing.T) {
	fail := true
	h := &mockHistory{createFn: func(ctx context.Context, p OrderPayload) (*CreateResult, error) {
		if fail {
			return nil, errors.New("503")
		}
		return createOK("INV-0016")(ctx, p)
	}}
	c := newTestController(t, h)
	startNew(t, c, "")
	fillValidMeasurementOrder(t, c)

	_, err := c.Submit(context.Background())
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("err = %v, want ErrSubmitFailed", err)
	}
	if IsValidation(err) {
		t.Error("network failure reported as validation")
	}
	if c.State() != StateSubmitFailed {
		t.Fatalf("state = %v, want submit_failed", c.State())
	}

	if err := c.SetDueDate("26/10/2026"); err != nil {
		t.Fatalf("edit after failure: %v", err)
	}
	if c.State() != StateEditing {
		t.Errorf("state = %v, want editing after edit", c.State())
	}
	fail = false
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
}
