package menu

import (
	"strings"
	"unicode"
)

// Product is a catalog entry a caller can order, with its variants and
// modifiers. Prices are VAT-exclusive; VatRate is applied at pricing time.
type Product struct {
	ID          int        `json:"id"`
	ShopID      int        `json:"shopId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	VatRate     float64    `json:"vatRate"`
	IsAvailable bool       `json:"isAvailable"`
	Stock       int        `json:"stock"`
	Variants    []Variant  `json:"variants,omitempty"`
	Modifiers   []Modifier `json:"modifiers,omitempty"`
}

// Variant is a size or preparation option scoped to one product.
type Variant struct {
	ID        int     `json:"id"`
	ProductID int     `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	VatRate   float64 `json:"vatRate"`
	IsDefault bool    `json:"isDefault"`
	Stock     int     `json:"stock"`
}

// Modifier is an optional extra scoped to one product.
type Modifier struct {
	ID        int     `json:"id"`
	ProductID int     `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	VatRate   float64 `json:"vatRate"`
}

// SnapshotProduct is the per-turn grounding projection of a product:
// just the identifiers and names the slot extractor matches against.
type SnapshotProduct struct {
	ID        int                `json:"id"`
	Name      string             `json:"name"`
	Variants  []SnapshotVariant  `json:"variants,omitempty"`
	Modifiers []SnapshotModifier `json:"modifiers,omitempty"`
}

// SnapshotVariant mirrors a variant inside a menu snapshot.
type SnapshotVariant struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// SnapshotModifier mirrors a modifier inside a menu snapshot.
type SnapshotModifier struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// NormalizeKey reduces a name or utterance to its compact form: lower-cased
// with everything but letters and digits stripped. Both grounding and
// finalize-time re-resolution compare compact forms so "extra cheese" and
// "Extra-Cheese!" collide.
func NormalizeKey(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
