package order_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	model "github.com/takeawayhq/voicedesk/backend/internal/model/order"
	order "github.com/takeawayhq/voicedesk/backend/internal/service/order"
)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

func newTestFinalizer(t *testing.T, maxPerSlot int) (*order.Finalizer, *order.MemoryStore, *menu.MemoryCatalog) {
	t.Helper()
	catalog := menu.NewMemoryCatalog(menu.Seed())
	clock := fakeClock{now: time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC)}
	store := order.NewMemoryStore(catalog, clock)
	throttle := order.NewThrottle(store, maxPerSlot)
	return order.NewFinalizer(store, throttle, nil, clock), store, catalog
}

func largeMargheritaDraft() *order.Draft {
	variantID := 11
	return &order.Draft{
		ShopID:      1,
		ProductID:   1,
		ProductName: "Margherita",
		VariantID:   &variantID,
		VariantName: "Large",
		ModifierIDs: []int{100},
		Quantity:    2,
		PickupAt:    time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC),
		Summary:     "2 x Margherita (Large) with Extra Cheese, ready at 18:30",
	}
}

func TestFinalizeCommitsOrder(t *testing.T) {
	finalizer, store, catalog := newTestFinalizer(t, 20)
	ctx := context.Background()

	committed, err := finalizer.Finalize(ctx, largeMargheritaDraft())
	if err != nil {
		t.Fatalf("Finalize err: %v", err)
	}

	if committed.ID == 0 {
		t.Error("order should have an identity")
	}
	wantCode := "ORD-202603141830-"
	if !strings.HasPrefix(committed.Code, wantCode) {
		t.Errorf("code %q should start with %q", committed.Code, wantCode)
	}
	if committed.Total != 23.54 {
		t.Errorf("total = %v, want 23.54", committed.Total)
	}
	if committed.Status != model.StatusReceived {
		t.Errorf("status = %q, want %q", committed.Status, model.StatusReceived)
	}
	if len(committed.Items) != 1 || committed.Items[0].VariantName != "Large" {
		t.Fatalf("unexpected items: %+v", committed.Items)
	}

	// Variant stock 15 minus the 2 committed units.
	products, _ := catalog.Products(ctx)
	for _, p := range products {
		if p.ID != 1 {
			continue
		}
		for _, v := range p.Variants {
			if v.ID == 11 && v.Stock != 13 {
				t.Errorf("variant stock = %d, want 13", v.Stock)
			}
		}
	}

	audits := store.AuditEntries()
	if len(audits) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audits))
	}
	if audits[0].EventType != "OrderCreated" {
		t.Errorf("audit event = %q", audits[0].EventType)
	}
	if !strings.Contains(audits[0].Payload, committed.Code) {
		t.Error("audit payload should embed the order code")
	}

	found, err := store.FindByCode(ctx, committed.Code)
	if err != nil {
		t.Fatalf("FindByCode err: %v", err)
	}
	if found.ID != committed.ID {
		t.Errorf("lookup returned order %d, want %d", found.ID, committed.ID)
	}
}

func TestFinalizeRejectsFullSlot(t *testing.T) {
	finalizer, _, _ := newTestFinalizer(t, 1)
	ctx := context.Background()

	if _, err := finalizer.Finalize(ctx, largeMargheritaDraft()); err != nil {
		t.Fatalf("first Finalize err: %v", err)
	}

	_, err := finalizer.Finalize(ctx, largeMargheritaDraft())
	perr, ok := order.AsProcessingError(err)
	if !ok {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if perr.Code != order.CodeSlotFull {
		t.Errorf("code = %q, want %q", perr.Code, order.CodeSlotFull)
	}
	if !strings.Contains(perr.Message, "fully booked") {
		t.Errorf("unexpected message %q", perr.Message)
	}
}

func TestFinalizeRejectsInsufficientStock(t *testing.T) {
	finalizer, _, _ := newTestFinalizer(t, 20)

	draft := largeMargheritaDraft()
	draft.Quantity = 16 // Large variant stock is 15

	_, err := finalizer.Finalize(context.Background(), draft)
	perr, ok := order.AsProcessingError(err)
	if !ok {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if perr.Code != order.CodeStockUnavailable {
		t.Errorf("code = %q, want %q", perr.Code, order.CodeStockUnavailable)
	}
}

func TestFinalizeRejectedDraftCommitsNothing(t *testing.T) {
	finalizer, store, catalog := newTestFinalizer(t, 20)
	ctx := context.Background()

	first := largeMargheritaDraft()
	first.Quantity = 8
	if _, err := finalizer.Finalize(ctx, first); err != nil {
		t.Fatalf("first Finalize err: %v", err)
	}

	second := largeMargheritaDraft()
	second.Quantity = 8 // 7 units left after the first commit

	_, err := finalizer.Finalize(ctx, second)
	perr, ok := order.AsProcessingError(err)
	if !ok {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if perr.Code != order.CodeStockUnavailable {
		t.Errorf("code = %q, want %q", perr.Code, order.CodeStockUnavailable)
	}

	// The rejection must not leave a half-applied commit behind: one
	// order, one audit entry, and only the first draft's decrement.
	count, err := store.CountInSlot(ctx, order.FloorToSlot(second.PickupAt))
	if err != nil {
		t.Fatalf("CountInSlot err: %v", err)
	}
	if count != 1 {
		t.Errorf("slot holds %d orders, want 1", count)
	}
	if audits := store.AuditEntries(); len(audits) != 1 {
		t.Errorf("expected 1 audit entry, got %d", len(audits))
	}

	products, _ := catalog.Products(ctx)
	for _, p := range products {
		if p.ID != 1 {
			continue
		}
		for _, v := range p.Variants {
			if v.ID == 11 && v.Stock != 7 {
				t.Errorf("variant stock = %d, want 7", v.Stock)
			}
		}
	}
}

func TestFinalizeRejectsUnknownProduct(t *testing.T) {
	finalizer, _, _ := newTestFinalizer(t, 20)

	draft := largeMargheritaDraft()
	draft.ProductID = 99
	draft.ProductName = "Calzone"
	draft.VariantID = nil
	draft.VariantName = ""
	draft.ModifierIDs = nil

	_, err := finalizer.Finalize(context.Background(), draft)
	perr, ok := order.AsProcessingError(err)
	if !ok {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if perr.Code != order.CodeProductNotFound {
		t.Errorf("code = %q, want %q", perr.Code, order.CodeProductNotFound)
	}
}

func TestFinalizeResolvesProductByName(t *testing.T) {
	finalizer, _, _ := newTestFinalizer(t, 20)

	// A stale slot mirror may carry a renumbered id; the compact name
	// still resolves.
	draft := &order.Draft{
		ProductID:   77,
		ProductName: "margherita",
		Quantity:    1,
		PickupAt:    time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC),
		Summary:     "1 x Margherita",
	}

	committed, err := finalizer.Finalize(context.Background(), draft)
	if err != nil {
		t.Fatalf("Finalize err: %v", err)
	}
	if committed.Items[0].ProductID != 1 {
		t.Errorf("resolved product %d, want 1", committed.Items[0].ProductID)
	}
}

func TestGenerateCodeFormat(t *testing.T) {
	ts := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	code := order.GenerateCode(ts, 42)
	if code != "ORD-202603141830-000042" {
		t.Fatalf("unexpected code %q", code)
	}
}
