package dialog_test

import (
	"context"
	"testing"
	"time"

	model "github.com/takeawayhq/voicedesk/backend/internal/model/dialog"
	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	dialog "github.com/takeawayhq/voicedesk/backend/internal/service/dialog"
)

var testNow = time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC)

func testSnapshot(t *testing.T) []menu.SnapshotProduct {
	t.Helper()
	snapshot, err := menu.NewMemoryCatalog(menu.Seed()).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot err: %v", err)
	}
	return snapshot
}

func TestExtractorFillsEverySlotInOneTurn(t *testing.T) {
	extractor := dialog.NewExtractor(10 * time.Minute)
	slots := model.NewSlotSet()

	extractor.Apply("two large margheritas with extra cheese for pickup at 18:30",
		testSnapshot(t), slots, testNow, false)

	if slots.Product() == nil || slots.Product().Name != "Margherita" {
		t.Fatalf("product = %+v, want Margherita", slots.Product())
	}
	if slots.Variant() == nil || slots.Variant().Name != "Large" {
		t.Fatalf("variant = %+v, want Large", slots.Variant())
	}
	if slots.Quantity() == nil || *slots.Quantity() != 2 {
		t.Fatalf("quantity = %v, want 2", slots.Quantity())
	}
	if len(slots.Modifiers()) != 1 || slots.Modifiers()[0].Name != "Extra Cheese" {
		t.Fatalf("modifiers = %+v, want Extra Cheese", slots.Modifiers())
	}
	if slots.PickupTime() == nil {
		t.Fatal("pickup time should be parsed")
	}
	want := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	if !slots.PickupTime().Equal(want) {
		t.Fatalf("pickup = %v, want %v", slots.PickupTime(), want)
	}
}

func TestExtractorTimeDigitsAreNotQuantity(t *testing.T) {
	extractor := dialog.NewExtractor(10 * time.Minute)
	slots := model.NewSlotSet()

	extractor.Apply("for pickup at 18:30", testSnapshot(t), slots, testNow, false)

	if slots.Quantity() != nil {
		t.Fatalf("clock digits leaked into quantity: %d", *slots.Quantity())
	}
	if slots.PickupTime() == nil {
		t.Fatal("pickup time should be parsed")
	}
}

func TestExtractorNumberWords(t *testing.T) {
	extractor := dialog.NewExtractor(10 * time.Minute)
	slots := model.NewSlotSet()

	extractor.Apply("three tiramisu please", testSnapshot(t), slots, testNow, false)

	if slots.Quantity() == nil || *slots.Quantity() != 3 {
		t.Fatalf("quantity = %v, want 3", slots.Quantity())
	}
	if slots.Product() == nil || slots.Product().Name != "Tiramisu" {
		t.Fatalf("product = %+v, want Tiramisu", slots.Product())
	}
	if !slots.ModifiersFilled() || !slots.ModifiersExplicitNone() {
		t.Fatal("a product without modifiers should auto-fill explicit none")
	}
}

func TestExtractorDefaultVariantFallback(t *testing.T) {
	extractor := dialog.NewExtractor(10 * time.Minute)
	slots := model.NewSlotSet()

	extractor.Apply("a margherita", testSnapshot(t), slots, testNow, false)

	if slots.Variant() == nil || slots.Variant().Name != "Regular" {
		t.Fatalf("variant = %+v, want the Regular default", slots.Variant())
	}
	if slots.Quantity() == nil || *slots.Quantity() != 1 {
		t.Fatalf("quantity = %v, want 1 from the article", slots.Quantity())
	}
}

func TestExtractorNegationMarksNoModifiers(t *testing.T) {
	extractor := dialog.NewExtractor(10 * time.Minute)
	slots := model.NewSlotSet()
	snapshot := testSnapshot(t)

	extractor.Apply("a margherita", snapshot, slots, testNow, false)
	extractor.Apply("nothing extra, thanks", snapshot, slots, testNow, false)

	if !slots.ModifiersFilled() || !slots.ModifiersExplicitNone() {
		t.Fatal("negation should fill the modifiers slot as explicit none")
	}
}

func TestExtractorMergesModifiersAcrossTurns(t *testing.T) {
	extractor := dialog.NewExtractor(10 * time.Minute)
	slots := model.NewSlotSet()
	snapshot := testSnapshot(t)

	extractor.Apply("a margherita with extra cheese", snapshot, slots, testNow, false)
	extractor.Apply("add olives too", snapshot, slots, testNow, false)

	if len(slots.Modifiers()) != 2 {
		t.Fatalf("modifiers = %+v, want Extra Cheese and Olives", slots.Modifiers())
	}
}

func TestExtractorRollsPastTimeToNextDay(t *testing.T) {
	extractor := dialog.NewExtractor(10 * time.Minute)
	slots := model.NewSlotSet()

	// 09:00 is already past at 17:00, so it means tomorrow morning.
	extractor.Apply("ready at 9:00", testSnapshot(t), slots, testNow, false)

	if slots.PickupTime() == nil {
		t.Fatal("pickup time should be parsed")
	}
	want := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	if !slots.PickupTime().Equal(want) {
		t.Fatalf("pickup = %v, want %v", slots.PickupTime(), want)
	}
}

func TestExtractorRejectsPickupInsideLead(t *testing.T) {
	extractor := dialog.NewExtractor(10 * time.Minute)
	slots := model.NewSlotSet()

	extractor.Apply("ready at 17:05", testSnapshot(t), slots, testNow, false)

	if slots.PickupTime() != nil {
		t.Fatalf("pickup inside the lead window should stay unfilled, got %v", slots.PickupTime())
	}
}

func TestExtractorParsesMeridiemTimes(t *testing.T) {
	extractor := dialog.NewExtractor(10 * time.Minute)
	slots := model.NewSlotSet()

	extractor.Apply("pick it up at 6 pm", testSnapshot(t), slots, testNow, false)

	if slots.PickupTime() == nil {
		t.Fatal("pickup time should be parsed")
	}
	want := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	if !slots.PickupTime().Equal(want) {
		t.Fatalf("pickup = %v, want %v", slots.PickupTime(), want)
	}
}
