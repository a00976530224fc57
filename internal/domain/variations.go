package domain

import (
	"sort"
	"strings"
)

// VariationOption is one selectable option of a variation type, e.g. "XL"
// under "Talle". Stock and Price override the product's values when set.
type VariationOption struct {
	Name  string   `json:"name"`
	Stock *int     `json:"stock,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

// Variations maps a variation type name to its options.
type Variations map[string][]VariationOption

// VariationRow is the flat form of one option, as edited in vendor forms.
type VariationRow struct {
	Type   string   `json:"type"`
	Option string   `json:"option"`
	Stock  *int     `json:"stock,omitempty"`
	Price  *float64 `json:"price,omitempty"`
}

// Flatten returns one row per option. Types are sorted by name; options keep
// their stored order.
func (v Variations) Flatten() []VariationRow {
	types := make([]string, 0, len(v))
	for t := range v {
		types = append(types, t)
	}
	sort.Strings(types)

	var rows []VariationRow
	for _, t := range types {
		for _, opt := range v[t] {
			rows = append(rows, VariationRow{Type: t, Option: opt.Name, Stock: opt.Stock, Price: opt.Price})
		}
	}
	return rows
}

// Unflatten rebuilds Variations from form rows. Rows with a blank type or
// option are dropped. A repeated option under the same type replaces the
// earlier one in place. Returns nil when no row survives.
func Unflatten(rows []VariationRow) Variations {
	var out Variations
	for _, row := range rows {
		typ := strings.TrimSpace(row.Type)
		name := strings.TrimSpace(row.Option)
		if typ == "" || name == "" {
			continue
		}
		if out == nil {
			out = make(Variations)
		}

		opt := VariationOption{Name: name, Stock: row.Stock, Price: row.Price}
		replaced := false
		for i := range out[typ] {
			if out[typ][i].Name == name {
				out[typ][i] = opt
				replaced = true
				break
			}
		}
		if !replaced {
			out[typ] = append(out[typ], opt)
		}
	}
	return out
}

// TotalStock sums the option stocks. ok is false when any option has no
// stock figure.
func (v Variations) TotalStock() (total int, ok bool) {
	if len(v) == 0 {
		return 0, false
	}
	for _, opts := range v {
		for _, opt := range opts {
			if opt.Stock == nil {
				return 0, false
			}
			total += *opt.Stock
		}
	}
	return total, true
}
