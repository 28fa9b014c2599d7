package menu

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrInsufficientStock is returned when a decrement would drive a stock
// counter below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Provider supplies the per-turn menu snapshot used for slot grounding.
// Only available products appear, sorted by name so that phrase matching
// is deterministic.
type Provider interface {
	Snapshot(ctx context.Context) ([]SnapshotProduct, error)
}

// Catalog exposes the live product list and stock mutation for order
// finalization. Finalization always resolves against the catalog, never
// against a snapshot a previous turn grounded on.
type Catalog interface {
	Provider
	Products(ctx context.Context) ([]Product, error)
	DecrementStock(ctx context.Context, productID int, variantID *int, quantity int) error
	RestoreStock(ctx context.Context, productID int, variantID *int, quantity int) error
}

// MemoryCatalog implements Catalog with an in-memory product list.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items []Product
}

// NewMemoryCatalog returns a MemoryCatalog preloaded with the supplied products.
func NewMemoryCatalog(items []Product) *MemoryCatalog {
	copied := make([]Product, len(items))
	copy(copied, items)
	return &MemoryCatalog{items: copied}
}

// Snapshot projects the available products for grounding.
func (c *MemoryCatalog) Snapshot(_ context.Context) ([]SnapshotProduct, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make([]SnapshotProduct, 0, len(c.items))
	for _, p := range c.items {
		if !p.IsAvailable {
			continue
		}
		sp := SnapshotProduct{ID: p.ID, Name: p.Name}
		for _, v := range p.Variants {
			sp.Variants = append(sp.Variants, SnapshotVariant{ID: v.ID, Name: v.Name, IsDefault: v.IsDefault})
		}
		for _, m := range p.Modifiers {
			sp.Modifiers = append(sp.Modifiers, SnapshotModifier{ID: m.ID, Name: m.Name})
		}
		snapshot = append(snapshot, sp)
	}

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Name < snapshot[j].Name })
	return snapshot, nil
}

// Products returns a copy of the full catalog, including unavailable entries.
func (c *MemoryCatalog) Products(_ context.Context) ([]Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copied := make([]Product, len(c.items))
	copy(copied, c.items)
	return copied, nil
}

// DecrementStock checks and reduces the matched stock counter in one step
// under the catalog lock. It fails with ErrInsufficientStock rather than
// letting the counter go negative, so callers can commit the order only
// after the reservation succeeded.
func (c *MemoryCatalog) DecrementStock(_ context.Context, productID int, variantID *int, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	counter := c.stockCounter(productID, variantID)
	if counter == nil {
		return nil
	}
	if *counter < quantity {
		return ErrInsufficientStock
	}
	*counter -= quantity
	return nil
}

// RestoreStock adds a previously decremented quantity back, compensating
// for an order commit that failed after the reservation.
func (c *MemoryCatalog) RestoreStock(_ context.Context, productID int, variantID *int, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter := c.stockCounter(productID, variantID); counter != nil {
		*counter += quantity
	}
	return nil
}

func (c *MemoryCatalog) stockCounter(productID int, variantID *int) *int {
	for i := range c.items {
		if c.items[i].ID != productID {
			continue
		}
		if variantID != nil {
			for j := range c.items[i].Variants {
				if c.items[i].Variants[j].ID == *variantID {
					return &c.items[i].Variants[j].Stock
				}
			}
			return nil
		}
		return &c.items[i].Stock
	}
	return nil
}

// Seed provides the demo menu the takeaway shop opens with.
func Seed() []Product {
	return []Product{
		{
			ID: 1, ShopID: 1, Name: "Margherita",
			Description: "Tomato, mozzarella, basil",
			Price:       7.50, VatRate: 0.10, IsAvailable: true, Stock: 40,
			Variants: []Variant{
				{ID: 10, ProductID: 1, Name: "Regular", Price: 7.50, VatRate: 0.10, IsDefault: true, Stock: 25},
				{ID: 11, ProductID: 1, Name: "Large", Price: 9.50, VatRate: 0.10, Stock: 15},
			},
			Modifiers: []Modifier{
				{ID: 100, ProductID: 1, Name: "Extra Cheese", Price: 1.20, VatRate: 0.10},
				{ID: 101, ProductID: 1, Name: "Olives", Price: 0.80, VatRate: 0.10},
			},
		},
		{
			ID: 2, ShopID: 1, Name: "Diavola",
			Description: "Tomato, mozzarella, spicy salami",
			Price:       9.00, VatRate: 0.10, IsAvailable: true, Stock: 30,
			Variants: []Variant{
				{ID: 20, ProductID: 2, Name: "Regular", Price: 9.00, VatRate: 0.10, IsDefault: true, Stock: 20},
				{ID: 21, ProductID: 2, Name: "Large", Price: 11.00, VatRate: 0.10, Stock: 10},
			},
			Modifiers: []Modifier{
				{ID: 200, ProductID: 2, Name: "Extra Cheese", Price: 1.20, VatRate: 0.10},
				{ID: 201, ProductID: 2, Name: "Hot Honey", Price: 1.50, VatRate: 0.10},
			},
		},
		{
			ID: 3, ShopID: 1, Name: "Tiramisu",
			Description: "Classic house tiramisu",
			Price:       4.50, VatRate: 0.10, IsAvailable: true, Stock: 12,
		},
		{
			ID: 4, ShopID: 1, Name: "Lemonade",
			Description: "Fresh pressed lemonade",
			Price:       2.50, VatRate: 0.22, IsAvailable: true, Stock: 60,
			Variants: []Variant{
				{ID: 40, ProductID: 4, Name: "Small", Price: 2.50, VatRate: 0.22, IsDefault: true, Stock: 35},
				{ID: 41, ProductID: 4, Name: "Large", Price: 3.50, VatRate: 0.22, Stock: 25},
			},
		},
	}
}
