package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tailorbook/api/internal/enum"
	"github.com/tailorbook/api/internal/measurement"
	"github.com/tailorbook/api/internal/payment"
)

// State is the lifecycle position of an order being built.
type State int

const (
	StateEmpty State = iota
	StateEditing
	StateSaving
	StateSubmitted
	StateSubmitFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	case StateSubmitted:
		return "submitted"
	case StateSubmitFailed:
		return "submit_failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// LineItem is one garment on the form.
type LineItem struct {
	GarmentType       string
	Quantity          int
	PricePerItem      decimal.NullDecimal
	PresetID          uuid.NullUUID
	PresetName        string
	Measurements      Measurements
	ExtraMeasurements Measurements
	Notes             *string
	IsCustomType      bool

	// Suggestion is history the tailor may apply. It is never applied
	// without an explicit ApplySuggestion or SelectPreset.
	Suggestion *measurement.Match
}

// TotalPrice is quantity times price, with an unset price counted as zero.
func (li LineItem) TotalPrice() decimal.Decimal {
	if !li.PricePerItem.Valid {
		return decimal.Zero
	}
	return li.PricePerItem.Decimal.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func newLineItem() LineItem {
	return LineItem{Quantity: 1}
}

// PaymentForm is the raw payment input. AdvancePayment is used in
// measurement mode; the other amount fields in manual mode.
type PaymentForm struct {
	Mode            string
	CashPaymentMode string
	DiscountAmount  string
	PayNowAmount    string
	PayLaterDate    string // DD/MM/YYYY
	AdvancePayment  string
}

// ItemEdit changes scalar fields of an item. Nil fields are left alone.
type ItemEdit struct {
	GarmentType  *string
	Quantity     *int
	PricePerItem *string
	Notes        *string
}

// Deps are the collaborators a Controller talks to.
type Deps struct {
	Presets    PresetCatalog
	Customers  CustomerDirectory
	History    OrderHistory
	Reconciler *payment.Reconciler
}

// Option configures a Controller.
type Option func(*Controller)

// WithStrategy replaces the default history matching strategy.
func WithStrategy(s measurement.Strategy) Option {
	return func(c *Controller) {
		c.strategy = s
	}
}

// historyLimit caps how many past orders are scanned for suggestions.
const historyLimit = 20

// Controller owns one order being entered, from first keystroke to
// submitted order. All methods are safe for concurrent use; the lock is
// never held across collaborator calls.
type Controller struct {
	session    Session
	presets    PresetCatalog
	customers  CustomerDirectory
	history    OrderHistory
	reconciler *payment.Reconciler
	strategy   measurement.Strategy

	mu             sync.Mutex
	state          State
	draftPersisted bool
	draftID        uuid.NullUUID
	draftSaving    bool
	mode           EntryMode
	customer       Customer
	dueDate        string
	items          []LineItem
	pay            PaymentForm

	presetList   []Preset
	customerList []Customer

	past       []measurement.PastOrder
	historySeq uint64

	result *SubmitResult
}

func NewController(sess Session, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		session:    sess,
		presets:    deps.Presets,
		customers:  deps.Customers,
		history:    deps.History,
		reconciler: deps.Reconciler,
		strategy:   measurement.LegacyFirst{},
		mode:       EntryModeMeasurement,
	}
	if c.reconciler == nil {
		c.reconciler = payment.NewReconciler(nil, nil)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session the controller was created with.
func (c *Controller) Session() Session {
	return c.session
}

// Start loads presets and customers, plus the draft when draftID is set,
// and moves the controller to Editing. A loaded draft decides the entry
// mode; otherwise mode is used, defaulting to measurement.
func (c *Controller) Start(ctx context.Context, draftID uuid.NullUUID, mode EntryMode) error {
	if mode == "" {
		mode = EntryModeMeasurement
	}
	if !mode.Valid() {
		return invalid("mode", ErrInvalidMode)
	}

	c.mu.Lock()
	if c.state != StateEmpty {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()

	var (
		presets   []Preset
		customers []Customer
		draft     Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := c.presets.GetPresets(gctx, c.session.ShopID)
		if err != nil {
			return fmt.Errorf("get presets: %w", err)
		}
		presets = list
		return nil
	})
	g.Go(func() error {
		list, err := c.customers.GetCustomers(gctx, c.session.ShopID)
		if err != nil {
			// Autocomplete only; the form works without it.
			log.Printf("WARN: get customers for shop %s: %v", c.session.ShopID, err)
			return nil
		}
		customers = list
		return nil
	})
	if draftID.Valid {
		g.Go(func() error {
			o, err := c.history.GetDraft(gctx, c.session.ShopID, draftID.UUID)
			if err != nil {
				return fmt.Errorf("get draft: %w", err)
			}
			if o.Status != enum.OrderStatusDraft {
				return ErrNotDraft
			}
			draft = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateEmpty {
		return ErrAlreadyStarted
	}
	c.presetList = presets
	c.customerList = customers
	c.mode = mode
	if draftID.Valid {
		c.loadDraftLocked(draft)
	}
	if len(c.items) == 0 {
		c.items = []LineItem{newLineItem()}
	}
	c.state = StateEditing
	return nil
}

// editableLocked checks that the form accepts edits. A failed submit
// returns the controller to Editing.
func (c *Controller) editableLocked() error {
	switch c.state {
	case StateEmpty:
		return ErrNotStarted
	case StateSaving:
		return ErrBusy
	case StateSubmitted:
		return ErrAlreadySubmitted
	case StateSubmitFailed:
		c.state = StateEditing
	}
	return nil
}

func (c *Controller) itemLocked(idx int) (*LineItem, error) {
	if idx < 0 || idx >= len(c.items) {
		return nil, fmt.Errorf("item %d: %w", idx, ErrItemIndex)
	}
	return &c.items[idx], nil
}

func (c *Controller) presetLocked(id uuid.UUID) (Preset, bool) {
	for _, p := range c.presetList {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// bumpHistoryLocked invalidates any history fetch still in flight.
func (c *Controller) bumpHistoryLocked() {
	c.historySeq++
}

// SetCustomer replaces the customer fields. A different phone number
// drops the cached history and its suggestions.
func (c *Controller) SetCustomer(cust Customer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	if normalizePhone(cust.Phone) != normalizePhone(c.customer.Phone) {
		c.bumpHistoryLocked()
		c.past = nil
		for i := range c.items {
			c.items[i].Suggestion = nil
		}
	}
	c.customer = cust
	return nil
}

func (c *Controller) SetMode(mode EntryMode) error {
	if !mode.Valid() {
		return invalid("mode", ErrInvalidMode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.mode = mode
	return nil
}

// SetDueDate stores the due date as typed (DD/MM/YYYY). It is validated at submit.
func (c *Controller) SetDueDate(display string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.dueDate = strings.TrimSpace(display)
	return nil
}

func (c *Controller) SetPayment(form PaymentForm) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.pay = form
	return nil
}

// AddItem appends a blank item and returns its index.
func (c *Controller) AddItem() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return 0, err
	}
	c.items = append(c.items, newLineItem())
	return len(c.items) - 1, nil
}

// RemoveItem deletes an item. The last remaining item cannot be removed.
func (c *Controller) RemoveItem(idx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	if _, err := c.itemLocked(idx); err != nil {
		return err
	}
	if len(c.items) == 1 {
		return invalid("items", ErrLastItem)
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	return nil
}

// UpdateItem applies edit to item idx. Nothing is changed if any field is invalid.
func (c *Controller) UpdateItem(idx int, edit ItemEdit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	item, err := c.itemLocked(idx)
	if err != nil {
		return err
	}

	next := *item
	if edit.Quantity != nil {
		if *edit.Quantity < 1 {
			return invalid(itemField(idx, "quantity"), ErrQuantity)
		}
		next.Quantity = *edit.Quantity
	}
	if edit.PricePerItem != nil {
		price, err := parsePrice(*edit.PricePerItem)
		if err != nil {
			return invalid(itemField(idx, "pricePerItem"), err)
		}
		next.PricePerItem = price
	}
	if edit.Notes != nil {
		notes := *edit.Notes
		next.Notes = &notes
	}
	if edit.GarmentType != nil {
		c.setGarmentTypeLocked(&next, *edit.GarmentType)
	}
	*item = next
	return nil
}

// SetGarmentType changes the garment type of a custom item.
func (c *Controller) SetGarmentType(idx int, garmentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	item, err := c.itemLocked(idx)
	if err != nil {
		return err
	}
	c.setGarmentTypeLocked(item, garmentType)
	return nil
}

func (c *Controller) setGarmentTypeLocked(item *LineItem, garmentType string) {
	garmentType = strings.TrimSpace(garmentType)
	if garmentType == item.GarmentType {
		return
	}
	item.GarmentType = garmentType
	c.bumpHistoryLocked()
	item.Suggestion = c.suggestLocked(garmentType)
}

// SelectPreset binds item idx to a preset. The measurement form is
// rebuilt from the preset's fields and seeded from the customer's latest
// matching history; history keys the preset does not declare become
// extra measurements. The preset's base price fills an empty or zero price.
// The returned Match is the history used, or nil.
func (c *Controller) SelectPreset(idx int, presetID uuid.UUID) (*measurement.Match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return nil, err
	}
	item, err := c.itemLocked(idx)
	if err != nil {
		return nil, err
	}
	p, ok := c.presetLocked(presetID)
	if !ok {
		return nil, fmt.Errorf("preset %s: %w", presetID, ErrUnknownPreset)
	}

	if item.GarmentType != p.Name {
		c.bumpHistoryLocked()
	}
	item.GarmentType = p.Name
	item.PresetID = uuid.NullUUID{UUID: p.ID, Valid: true}
	item.PresetName = p.Name
	item.IsCustomType = false
	item.Suggestion = nil
	item.Measurements = make(Measurements, len(p.Fields))
	for _, f := range p.Fields {
		item.Measurements[f.Name] = ""
	}
	item.ExtraMeasurements = nil

	match := c.strategy.Find(p.Name, c.past)
	if match != nil {
		applyMatch(item, p, match)
	}
	if (!item.PricePerItem.Valid || item.PricePerItem.Decimal.IsZero()) && p.BasePrice.Valid {
		item.PricePerItem = p.BasePrice
	}
	return match, nil
}

// UseCustomType unbinds item idx from any preset and names the garment.
func (c *Controller) UseCustomType(idx int, garmentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	item, err := c.itemLocked(idx)
	if err != nil {
		return err
	}
	item.PresetID = uuid.NullUUID{}
	item.PresetName = ""
	item.IsCustomType = true
	item.Measurements = Measurements{}
	item.ExtraMeasurements = nil
	item.GarmentType = strings.TrimSpace(garmentType)
	c.bumpHistoryLocked()
	item.Suggestion = c.suggestLocked(item.GarmentType)
	return nil
}

// SetMeasurement sets one measurement. On preset items the field must be
// declared by the preset; anything else goes through SetExtraMeasurement.
func (c *Controller) SetMeasurement(idx int, field, value string) error {
	return c.SetMeasurements(idx, Measurements{field: value}, nil)
}

// SetExtraMeasurement sets a measurement outside the preset's fields.
// An empty value removes it. Custom items have no preset, so extras land
// in the main measurement set.
func (c *Controller) SetExtraMeasurement(idx int, field, value string) error {
	return c.SetMeasurements(idx, nil, Measurements{field: value})
}

// SetMeasurements writes preset and extra measurements together. Every key
// is checked first; nothing is written when any of them is rejected.
func (c *Controller) SetMeasurements(idx int, values, extras Measurements) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	item, err := c.itemLocked(idx)
	if err != nil {
		return err
	}

	var p Preset
	bound := false
	if item.PresetID.Valid {
		p, bound = c.presetLocked(item.PresetID.UUID)
	}
	for _, k := range sortedKeys(values) {
		field := strings.TrimSpace(k)
		if field == "" {
			return invalid(itemField(idx, "measurements"), ErrMeasurementField)
		}
		if bound && !p.HasField(field) {
			return invalid(itemField(idx, "measurements."+field), ErrMeasurementField)
		}
	}
	for _, k := range sortedKeys(extras) {
		if strings.TrimSpace(k) == "" {
			return invalid(itemField(idx, "extraMeasurements"), ErrMeasurementField)
		}
	}

	for k, v := range values {
		if item.Measurements == nil {
			item.Measurements = Measurements{}
		}
		item.Measurements[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	for k, v := range extras {
		setExtra(item, strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return nil
}

func setExtra(item *LineItem, field, value string) {
	target := &item.ExtraMeasurements
	if !item.PresetID.Valid {
		target = &item.Measurements
	}
	if value == "" {
		delete(*target, field)
		return
	}
	if *target == nil {
		*target = Measurements{}
	}
	(*target)[field] = value
}

func sortedKeys(m Measurements) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplySuggestion copies the item's pending history suggestion into its
// measurements.
func (c *Controller) ApplySuggestion(idx int) (*measurement.Match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return nil, err
	}
	item, err := c.itemLocked(idx)
	if err != nil {
		return nil, err
	}
	if item.Suggestion == nil {
		return nil, fmt.Errorf("item %d: %w", idx, ErrNoSuggestion)
	}
	match := item.Suggestion
	var p Preset
	if item.PresetID.Valid {
		p, _ = c.presetLocked(item.PresetID.UUID)
	}
	applyMatch(item, p, match)
	item.Suggestion = nil
	return match, nil
}

// applyMatch overlays history onto an item. With a preset, keys the preset
// declares go to Measurements and the rest to ExtraMeasurements; without
// one, everything goes to Measurements.
func applyMatch(item *LineItem, p Preset, match *measurement.Match) {
	if item.Measurements == nil {
		item.Measurements = Measurements{}
	}
	for k, v := range match.Measurements {
		if p.ID == uuid.Nil || p.HasField(k) {
			item.Measurements[k] = v
			continue
		}
		if item.ExtraMeasurements == nil {
			item.ExtraMeasurements = Measurements{}
		}
		item.ExtraMeasurements[k] = v
	}
}

// parsePrice accepts an empty string as "no price".
func parsePrice(raw string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, ok := payment.ParseAmount(raw)
	if !ok || d.IsNegative() {
		return decimal.NullDecimal{}, ErrInvalidPrice
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// PaymentSummary recomputes the cash breakdown from the current form.
func (c *Controller) PaymentSummary() payment.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaryLocked()
}

func (c *Controller) summaryLocked() payment.Summary {
	gross := c.grossLocked()
	if c.mode == EntryModeManual {
		return payment.Summarize(payment.Input{
			Gross:          gross,
			DiscountAmount: c.pay.DiscountAmount,
			Mode:           c.pay.Mode,
			PayNowAmount:   c.pay.PayNowAmount,
		})
	}
	return payment.Summarize(payment.Input{
		Gross:        gross,
		Mode:         c.pay.Mode,
		PayNowAmount: c.pay.AdvancePayment,
	})
}

func (c *Controller) grossLocked() decimal.Decimal {
	gross := decimal.Zero
	for _, it := range c.items {
		gross = gross.Add(it.TotalPrice())
	}
	return gross
}

// IsValidation reports whether err is a local, field-level validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	var fe payment.FieldErrors
	return errors.As(err, &ve) || errors.As(err, &fe)
}
