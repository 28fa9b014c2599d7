package dialog

import "time"

// SlotValidation bounds shared by the extractor and transport validation.
const (
	MinQuantity = 1
	MaxQuantity = 50
)

// IsValidQuantity reports whether a parsed quantity may enter the slot.
func IsValidQuantity(quantity int) bool {
	return quantity >= MinQuantity && quantity <= MaxQuantity
}

// IsValidPickupTime reports whether a candidate pickup instant is far
// enough ahead of now.
func IsValidPickupTime(pickup, now time.Time, minimumLead time.Duration) bool {
	if minimumLead <= 0 {
		minimumLead = 10 * time.Minute
	}
	return !pickup.Before(now.Add(minimumLead))
}

// ProductSelection identifies the product slot value.
type ProductSelection struct {
	ProductID int    `json:"productId"`
	Name      string `json:"name"`
}

// VariantSelection identifies the variant slot value; ProductID scopes it.
type VariantSelection struct {
	VariantID int    `json:"variantId"`
	Name      string `json:"name"`
	ProductID int    `json:"productId"`
}

// ModifierSelection identifies one selected modifier; ProductID scopes it.
type ModifierSelection struct {
	ModifierID int    `json:"modifierId"`
	Name       string `json:"name"`
	ProductID  int    `json:"productId"`
}

// SlotSet holds the five order slots. Product is the root: switching to a
// different product clears Variant and Modifiers, and clearing Product
// clears everything that depends on it.
type SlotSet struct {
	product  *ProductSelection
	variant  *VariantSelection
	quantity *int

	modifiers       []ModifierSelection
	modifiersFilled bool
	modifiersNone   bool
	pickupTime      *time.Time
}

// NewSlotSet returns an empty slot set.
func NewSlotSet() *SlotSet {
	return &SlotSet{}
}

// Product returns the current product selection, or nil.
func (s *SlotSet) Product() *ProductSelection { return s.product }

// Variant returns the current variant selection, or nil.
func (s *SlotSet) Variant() *VariantSelection { return s.variant }

// Quantity returns the current quantity, or nil.
func (s *SlotSet) Quantity() *int { return s.quantity }

// Modifiers returns the selected modifiers. Combine with ModifiersFilled
// to distinguish "unfilled" from "explicit none".
func (s *SlotSet) Modifiers() []ModifierSelection { return s.modifiers }

// ModifiersFilled reports whether the modifiers slot has been decided.
func (s *SlotSet) ModifiersFilled() bool { return s.modifiersFilled }

// ModifiersExplicitNone reports whether the caller declined modifiers.
func (s *SlotSet) ModifiersExplicitNone() bool { return s.modifiersNone }

// PickupTime returns the pickup instant, or nil.
func (s *SlotSet) PickupTime() *time.Time { return s.pickupTime }

// SetProduct fills the product slot. Selecting a different product clears
// the product-scoped Variant and Modifiers slots.
func (s *SlotSet) SetProduct(selection ProductSelection) {
	changed := s.product == nil || s.product.ProductID != selection.ProductID
	s.product = &selection
	if changed {
		s.ClearVariant()
		s.ClearModifiers()
	}
}

// ClearProduct empties the product slot and every dependent slot.
func (s *SlotSet) ClearProduct() {
	s.product = nil
	s.ClearVariant()
	s.ClearModifiers()
	s.ClearQuantity()
	s.ClearPickupTime()
}

// SetVariant fills the variant slot. Ignored unless it belongs to the
// currently selected product.
func (s *SlotSet) SetVariant(selection VariantSelection) {
	if s.product == nil || s.product.ProductID != selection.ProductID {
		return
	}
	s.variant = &selection
}

// ClearVariant empties the variant slot.
func (s *SlotSet) ClearVariant() { s.variant = nil }

// SetQuantity fills the quantity slot.
func (s *SlotSet) SetQuantity(quantity int) { s.quantity = &quantity }

// ClearQuantity empties the quantity slot.
func (s *SlotSet) ClearQuantity() { s.quantity = nil }

// SetModifiers fills the modifiers slot with explicit selections. Ignored
// until a product is selected.
func (s *SlotSet) SetModifiers(selections []ModifierSelection) {
	if s.product == nil {
		return
	}
	s.modifiers = append([]ModifierSelection(nil), selections...)
	s.modifiersFilled = true
	s.modifiersNone = len(s.modifiers) == 0
}

// MarkNoModifiers fills the modifiers slot as an explicit "none".
func (s *SlotSet) MarkNoModifiers() {
	if s.product == nil {
		return
	}
	s.modifiers = nil
	s.modifiersFilled = true
	s.modifiersNone = true
}

// ClearModifiers empties the modifiers slot back to "unfilled".
func (s *SlotSet) ClearModifiers() {
	s.modifiers = nil
	s.modifiersFilled = false
	s.modifiersNone = false
}

// SetPickupTime fills the pickup-time slot.
func (s *SlotSet) SetPickupTime(pickup time.Time) { s.pickupTime = &pickup }

// ClearPickupTime empties the pickup-time slot.
func (s *SlotSet) ClearPickupTime() { s.pickupTime = nil }

// ClearAll empties every slot.
func (s *SlotSet) ClearAll() {
	s.ClearProduct()
}
