package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tailorbook/api/internal/enum"
	"github.com/tailorbook/api/internal/order"
)

// Catalog is the seed file: the shop and the presets it starts with.
type Catalog struct {
	Shop    ShopSeed     `yaml:"shop"`
	Presets []PresetSeed `yaml:"presets"`
}

type ShopSeed struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

type PresetSeed struct {
	Name      string      `yaml:"name"`
	BasePrice string      `yaml:"base_price"`
	Fields    []FieldSeed `yaml:"fields"`
}

type FieldSeed struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	Unit     string `yaml:"unit"`
	Required bool   `yaml:"required"`
}

func loadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if strings.TrimSpace(c.Shop.Name) == "" {
		return nil, fmt.Errorf("catalog: shop.name is required")
	}
	return c, nil
}

// toPreset converts a seed entry. Units default to "any" and labels to the
// field name.
func (p PresetSeed) toPreset() (order.Preset, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return order.Preset{}, fmt.Errorf("preset name is required")
	}
	out := order.Preset{Name: name}

	seen := make(map[string]bool, len(p.Fields))
	for _, f := range p.Fields {
		if f.Name == "" || seen[f.Name] {
			return order.Preset{}, fmt.Errorf("preset %s: missing or duplicate field name %q", name, f.Name)
		}
		seen[f.Name] = true
		unit := f.Unit
		switch unit {
		case "":
			unit = enum.FieldUnitAny
		case enum.FieldUnitInches, enum.FieldUnitCM, enum.FieldUnitAny:
		default:
			return order.Preset{}, fmt.Errorf("preset %s: field %s: unknown unit %q", name, f.Name, unit)
		}
		label := f.Label
		if label == "" {
			label = f.Name
		}
		out.Fields = append(out.Fields, order.Field{Name: f.Name, Label: label, Unit: unit, Required: f.Required})
	}

	if p.BasePrice != "" {
		d, err := decimal.NewFromString(p.BasePrice)
		if err != nil || d.IsNegative() {
			return order.Preset{}, fmt.Errorf("preset %s: invalid base_price %q", name, p.BasePrice)
		}
		out.BasePrice = decimal.NewNullDecimal(d)
	}
	return out, nil
}
