package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	model "github.com/takeawayhq/voicedesk/backend/internal/model/order"
)

// Draft is the single-item order synthesized from a completed slot set at
// finalize time. It only exists inside the finalize operation.
type Draft struct {
	ShopID    int
	ChannelID int

	ProductID   int
	ProductName string
	VariantID   *int
	VariantName string
	ModifierIDs []int
	Quantity    int
	PickupAt    time.Time
	Notes       string
	Summary     string
}

// Store is the order-persistence collaborator. Finalize must be
// transactional: stock decrement, order row, audit entry, and code all
// commit together or not at all, with the code generated strictly after
// the row has an identity. Domain rule violations come back as
// *ProcessingError; anything else is an infrastructure failure.
type Store interface {
	SlotCounter
	Finalize(ctx context.Context, draft *Draft) (*model.Order, error)
	FindByCode(ctx context.Context, code string) (*model.Order, error)
	UpdateStatus(ctx context.Context, orderID int, status string) error
}

// Notifier receives best-effort post-commit notifications. Failures are
// logged by implementations, never surfaced as order failures.
type Notifier interface {
	OrderCreated(ctx context.Context, o *model.Order)
	TicketCreated(ctx context.Context, o *model.Order)
}

// Clock supplies the current instant; injected so callers never read the
// wall clock directly.
type Clock interface {
	Now() time.Time
}

// Finalizer commits a confirmed draft: throttling, re-resolution against
// the live catalog, pricing, persistence, and notifications.
type Finalizer struct {
	store    Store
	throttle *Throttle
	notifier Notifier
	clock    Clock
}

// NewFinalizer wires the finalizer's collaborators.
func NewFinalizer(store Store, throttle *Throttle, notifier Notifier, clock Clock) *Finalizer {
	return &Finalizer{store: store, throttle: throttle, notifier: notifier, clock: clock}
}

// Finalize runs the atomic commit for a confirmed order. A full pickup
// bucket or a catalog/stock conflict comes back as *ProcessingError; the
// caller returns the dialog to collecting. Infrastructure errors pass
// through untouched.
func (f *Finalizer) Finalize(ctx context.Context, draft *Draft) (*model.Order, error) {
	slotStart := FloorToSlot(draft.PickupAt)

	ok, err := f.throttle.CanPlace(ctx, slotStart)
	if err != nil {
		return nil, fmt.Errorf("throttle check: %w", err)
	}
	if !ok {
		return nil, NewProcessingError(CodeSlotFull, "That pickup slot is fully booked. Please choose another time.")
	}

	committed, err := f.store.Finalize(ctx, draft)
	if err != nil {
		return nil, err
	}

	log.Printf("[finalize] order %s committed for slot %s, total %.2f",
		committed.Code, slotStart.Format(time.RFC3339), committed.Total)

	if f.notifier != nil {
		// The order is already committed; notification runs detached so a
		// slow broker never delays the caller's response.
		notifyCtx := context.WithoutCancel(ctx)
		o := committed
		go func() {
			f.notifier.OrderCreated(notifyCtx, o)
			f.notifier.TicketCreated(notifyCtx, o)
		}()
	}

	return committed, nil
}

// BuildOrder re-resolves a draft against the current catalog and prices
// it, returning the unpersisted order and the stock counter to decrement.
// Shared by every Store implementation so the domain-error contract stays
// identical across backends.
func BuildOrder(products []menu.Product, draft *Draft, now time.Time) (*model.Order, StockRef, error) {
	var ref StockRef

	product, found := findProduct(products, draft)
	if !found {
		return nil, ref, NewProcessingError(CodeProductNotFound,
			fmt.Sprintf("I couldn't find %s on the menu.", draft.ProductName))
	}
	if !product.IsAvailable {
		return nil, ref, NewProcessingError(CodeProductUnavailable,
			fmt.Sprintf("%s is not available right now.", product.Name))
	}

	variant, err := findVariant(product, draft)
	if err != nil {
		return nil, ref, err
	}

	modifiers, err := findModifiers(product, draft)
	if err != nil {
		return nil, ref, err
	}

	availableStock := product.Stock
	if variant != nil {
		availableStock = variant.Stock
	}
	if availableStock < draft.Quantity {
		return nil, ref, NewProcessingError(CodeStockUnavailable,
			fmt.Sprintf("We only have %d %s left for today.", availableStock, product.Name))
	}

	pricing, err := CalculatePricing(product, variant, modifiers, draft.Quantity)
	if err != nil {
		return nil, ref, NewProcessingError(CodePricingFailed, "I couldn't calculate the total for this order.")
	}
	if pricing.Subtotal <= 0 {
		return nil, ref, NewProcessingError(CodePricingFailed, "I couldn't calculate the total for this order.")
	}

	item := model.Item{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    draft.Quantity,
		UnitPrice:   pricing.UnitPrice,
		Subtotal:    pricing.Subtotal,
	}
	ref = StockRef{ProductID: product.ID, Quantity: draft.Quantity}
	if variant != nil {
		id := variant.ID
		item.VariantID = &id
		item.VariantName = variant.Name
		ref.VariantID = &id
	}
	for _, m := range modifiers {
		item.Modifiers = append(item.Modifiers, m.Name)
	}

	slotStart := FloorToSlot(draft.PickupAt)
	o := &model.Order{
		ShopID:    draft.ShopID,
		ChannelID: draft.ChannelID,
		Status:    model.StatusReceived,
		PickupAt:  slotStart,
		CreatedAt: now.UTC(),
		Total:     pricing.Subtotal,
		Notes:     draft.Notes,
		Items:     []model.Item{item},
	}

	return o, ref, nil
}

// StockRef names the stock counter an order consumes: the variant's when
// a variant was chosen, the product's otherwise.
type StockRef struct {
	ProductID int
	VariantID *int
	Quantity  int
}

// NewAuditEntry serializes the created-order audit payload recorded in
// the same transaction as the order row.
func NewAuditEntry(o *model.Order, now time.Time) model.AuditEntry {
	payload, err := json.Marshal(map[string]any{
		"orderCode": o.Code,
		"total":     o.Total,
		"items":     o.Items,
	})
	if err != nil {
		payload = []byte("{}")
	}
	return model.AuditEntry{
		OrderID:   o.ID,
		EventType: "OrderCreated",
		CreatedAt: now.UTC(),
		Payload:   string(payload),
	}
}

func findProduct(products []menu.Product, draft *Draft) (menu.Product, bool) {
	for _, p := range products {
		if p.ID == draft.ProductID {
			return p, true
		}
	}
	// Slot mirrors rehydrated from a stale snapshot may carry a renumbered
	// id; fall back to compact-name matching before giving up.
	key := menu.NormalizeKey(draft.ProductName)
	if key == "" {
		return menu.Product{}, false
	}
	for _, p := range products {
		productKey := menu.NormalizeKey(p.Name)
		if productKey == key || strings.Contains(productKey, key) || strings.Contains(key, productKey) {
			return p, true
		}
	}
	return menu.Product{}, false
}

func findVariant(product menu.Product, draft *Draft) (*menu.Variant, error) {
	if draft.VariantID == nil && draft.VariantName == "" {
		for i := range product.Variants {
			if product.Variants[i].IsDefault {
				return &product.Variants[i], nil
			}
		}
		return nil, nil
	}

	for i := range product.Variants {
		v := &product.Variants[i]
		if draft.VariantID != nil && v.ID == *draft.VariantID {
			return v, nil
		}
		if draft.VariantName != "" && menu.NormalizeKey(v.Name) == menu.NormalizeKey(draft.VariantName) {
			return v, nil
		}
	}

	return nil, NewProcessingError(CodeVariantNotFound,
		fmt.Sprintf("I couldn't find the %s option for %s.", draft.VariantName, product.Name))
}

func findModifiers(product menu.Product, draft *Draft) ([]menu.Modifier, error) {
	if len(draft.ModifierIDs) == 0 {
		return nil, nil
	}

	modifiers := make([]menu.Modifier, 0, len(draft.ModifierIDs))
	for _, id := range draft.ModifierIDs {
		found := false
		for _, m := range product.Modifiers {
			if m.ID == id {
				modifiers = append(modifiers, m)
				found = true
				break
			}
		}
		if !found {
			return nil, NewProcessingError(CodeModifierNotFound,
				fmt.Sprintf("One of the extras is no longer available for %s.", product.Name))
		}
	}
	return modifiers, nil
}
