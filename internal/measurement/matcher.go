package measurement

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PastOrder is a previously saved order as read from order history.
// Older orders carry a single measurement set (OrderType + Measurements);
// newer ones carry one set per item.
type PastOrder struct {
	Ref          string // invoice number or order ID, used in Match.Source
	OrderType    string
	Measurements map[string]string
	Items        []PastItem
}

// PastItem is one garment of a multi-item past order.
type PastItem struct {
	GarmentType  string
	Measurements map[string]string
	PresetID     uuid.NullUUID
}

// Match is a measurement set found in history.
type Match struct {
	Measurements map[string]string
	Source       string
	PresetID     uuid.NullUUID
}

// Strategy finds the measurement set to reuse for a garment type.
// past must already be ordered newest first.
type Strategy interface {
	Find(garmentType string, past []PastOrder) *Match
}

// LegacyFirst is the default strategy: within each order the legacy
// single-measurement record is checked before the items.
type LegacyFirst struct{}

func (LegacyFirst) Find(garmentType string, past []PastOrder) *Match {
	return FindLatest(garmentType, past)
}

// ItemsFirst checks an order's items before its legacy record. Order
// precedence across past orders is unchanged.
type ItemsFirst struct{}

func (ItemsFirst) Find(garmentType string, past []PastOrder) *Match {
	target := normalize(garmentType)
	if target == "" {
		return nil
	}
	for _, o := range past {
		if m := matchItems(target, o); m != nil {
			return m
		}
		if m := matchLegacy(target, o); m != nil {
			return m
		}
	}
	return nil
}

// FindLatest returns the first usable measurement set for garmentType,
// scanning past in the given order. A record is usable when its type
// contains the target (case-insensitive) and it has at least one measurement.
// Returns nil when nothing matches.
func FindLatest(garmentType string, past []PastOrder) *Match {
	target := normalize(garmentType)
	if target == "" {
		return nil
	}
	for _, o := range past {
		if m := matchLegacy(target, o); m != nil {
			return m
		}
		if m := matchItems(target, o); m != nil {
			return m
		}
	}
	return nil
}

func matchLegacy(target string, o PastOrder) *Match {
	if o.OrderType == "" || len(o.Measurements) == 0 {
		return nil
	}
	if !strings.Contains(strings.ToLower(o.OrderType), target) {
		return nil
	}
	return &Match{
		Measurements: clone(o.Measurements),
		Source:       source(o.Ref, o.OrderType),
	}
}

func matchItems(target string, o PastOrder) *Match {
	for _, item := range o.Items {
		if len(item.Measurements) == 0 {
			continue
		}
		if !strings.Contains(strings.ToLower(item.GarmentType), target) {
			continue
		}
		return &Match{
			Measurements: clone(item.Measurements),
			Source:       source(o.Ref, item.GarmentType),
			PresetID:     item.PresetID,
		}
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func source(ref, garmentType string) string {
	if ref == "" {
		return garmentType
	}
	return fmt.Sprintf("%s (%s)", garmentType, ref)
}

func clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
