package order

import (
	"fmt"
	"math"

	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
)

// Pricing is the computed price breakdown for one order line. It is
// derived fresh per item and never persisted as an entity.
type Pricing struct {
	UnitPrice        float64
	Subtotal         float64
	BaseWithVat      float64
	ModifiersWithVat float64
}

// RoundHalfAway rounds to the given number of decimal places with halves
// moving away from zero. Price parity with the existing shop depends on
// this exact mode at every step.
func RoundHalfAway(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	if value < 0 {
		return -math.Floor(-value*scale+0.5) / scale
	}
	return math.Floor(value*scale+0.5) / scale
}

// CalculatePricing prices one line: VAT is applied to the base (variant
// price when selected, product price otherwise) and to each modifier at
// 4 decimal places, then unit price and subtotal round to 2.
func CalculatePricing(product menu.Product, variant *menu.Variant, modifiers []menu.Modifier, quantity int) (Pricing, error) {
	if quantity <= 0 {
		return Pricing{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	basePrice := product.Price
	vatRate := product.VatRate
	if variant != nil {
		basePrice = variant.Price
		vatRate = variant.VatRate
	}
	baseWithVat := applyVat(basePrice, vatRate)

	modifiersTotal := 0.0
	for _, modifier := range modifiers {
		modifiersTotal += applyVat(modifier.Price, modifier.VatRate)
	}

	unitPrice := RoundHalfAway(baseWithVat+modifiersTotal, 2)
	subtotal := RoundHalfAway(unitPrice*float64(quantity), 2)

	return Pricing{
		UnitPrice:        unitPrice,
		Subtotal:         subtotal,
		BaseWithVat:      baseWithVat,
		ModifiersWithVat: modifiersTotal,
	}, nil
}

func applyVat(price, vatRate float64) float64 {
	return RoundHalfAway(price*(1+vatRate), 4)
}
