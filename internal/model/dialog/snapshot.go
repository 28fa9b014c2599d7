package dialog

import "time"

// SlotsSnapshot mirrors the slot set as plain data so a stateless
// transport can round-trip it and rehydrate a session's slots from the
// previous response.
type SlotsSnapshot struct {
	Product    ProductSlotSnapshot    `json:"product"`
	Variant    VariantSlotSnapshot    `json:"variant"`
	Quantity   QuantitySlotSnapshot   `json:"quantity"`
	Modifiers  ModifiersSlotSnapshot  `json:"modifiers"`
	PickupTime PickupTimeSlotSnapshot `json:"pickupTime"`
}

// ProductSlotSnapshot mirrors the product slot.
type ProductSlotSnapshot struct {
	ProductID *int   `json:"productId,omitempty"`
	Name      string `json:"name,omitempty"`
	IsFilled  bool   `json:"isFilled"`
}

// VariantSlotSnapshot mirrors the variant slot.
type VariantSlotSnapshot struct {
	VariantID *int   `json:"variantId,omitempty"`
	Name      string `json:"name,omitempty"`
	ProductID *int   `json:"productId,omitempty"`
	IsFilled  bool   `json:"isFilled"`
}

// QuantitySlotSnapshot mirrors the quantity slot.
type QuantitySlotSnapshot struct {
	Quantity *int `json:"quantity,omitempty"`
	IsFilled bool `json:"isFilled"`
}

// ModifiersSlotSnapshot mirrors the modifiers slot, preserving the
// distinction between "unfilled" and "explicit none".
type ModifiersSlotSnapshot struct {
	Selections     []ModifierSelection `json:"selections,omitempty"`
	IsFilled       bool                `json:"isFilled"`
	IsExplicitNone bool                `json:"isExplicitNone"`
}

// PickupTimeSlotSnapshot mirrors the pickup-time slot.
type PickupTimeSlotSnapshot struct {
	Value    *time.Time `json:"value,omitempty"`
	IsFilled bool       `json:"isFilled"`
}

// Snapshot captures the slot set as plain data.
func (s *SlotSet) Snapshot() SlotsSnapshot {
	snap := SlotsSnapshot{}

	if s.product != nil {
		id := s.product.ProductID
		snap.Product = ProductSlotSnapshot{ProductID: &id, Name: s.product.Name, IsFilled: true}
	}
	if s.variant != nil {
		id := s.variant.VariantID
		pid := s.variant.ProductID
		snap.Variant = VariantSlotSnapshot{VariantID: &id, Name: s.variant.Name, ProductID: &pid, IsFilled: true}
	}
	if s.quantity != nil {
		q := *s.quantity
		snap.Quantity = QuantitySlotSnapshot{Quantity: &q, IsFilled: true}
	}
	if s.modifiersFilled {
		snap.Modifiers = ModifiersSlotSnapshot{
			Selections:     append([]ModifierSelection(nil), s.modifiers...),
			IsFilled:       true,
			IsExplicitNone: s.modifiersNone,
		}
	}
	if s.pickupTime != nil {
		t := *s.pickupTime
		snap.PickupTime = PickupTimeSlotSnapshot{Value: &t, IsFilled: true}
	}

	return snap
}

// ApplySnapshot rehydrates the slot set from transported data, keeping the
// cross-slot invalidation rules intact.
func (s *SlotSet) ApplySnapshot(snap SlotsSnapshot) {
	if snap.Product.IsFilled && snap.Product.ProductID != nil && snap.Product.Name != "" {
		s.SetProduct(ProductSelection{ProductID: *snap.Product.ProductID, Name: snap.Product.Name})
	} else {
		s.ClearProduct()
		return
	}

	if snap.Variant.IsFilled && snap.Variant.VariantID != nil && snap.Variant.ProductID != nil && snap.Variant.Name != "" {
		s.SetVariant(VariantSelection{VariantID: *snap.Variant.VariantID, Name: snap.Variant.Name, ProductID: *snap.Variant.ProductID})
	} else {
		s.ClearVariant()
	}

	if snap.Quantity.IsFilled && snap.Quantity.Quantity != nil {
		s.SetQuantity(*snap.Quantity.Quantity)
	} else {
		s.ClearQuantity()
	}

	if snap.Modifiers.IsFilled {
		if snap.Modifiers.IsExplicitNone {
			s.MarkNoModifiers()
		} else {
			s.SetModifiers(snap.Modifiers.Selections)
		}
	} else {
		s.ClearModifiers()
	}

	if snap.PickupTime.IsFilled && snap.PickupTime.Value != nil {
		s.SetPickupTime(*snap.PickupTime.Value)
	} else {
		s.ClearPickupTime()
	}
}
