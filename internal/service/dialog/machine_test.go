package dialog_test

import (
	"context"
	"strings"
	"testing"
	"time"

	analysis "github.com/takeawayhq/voicedesk/backend/internal/analysis/intent"
	model "github.com/takeawayhq/voicedesk/backend/internal/model/dialog"
	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	dialog "github.com/takeawayhq/voicedesk/backend/internal/service/dialog"
	order "github.com/takeawayhq/voicedesk/backend/internal/service/order"
)

func newTestMachine(t *testing.T, maxPerSlot int) (*dialog.Machine, *order.Finalizer) {
	t.Helper()
	catalog := menu.NewMemoryCatalog(menu.Seed())
	clock := &stepClock{now: time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC)}
	store := order.NewMemoryStore(catalog, clock)
	throttle := order.NewThrottle(store, maxPerSlot)
	finalizer := order.NewFinalizer(store, throttle, nil, clock)
	return dialog.NewMachine(catalog, finalizer, clock, 10*time.Minute), finalizer
}

func say(m *dialog.Machine, s *model.Session, utterance string) model.Result {
	return m.Handle(context.Background(), s, model.Event{
		Type:          model.EventUtterance,
		UtteranceText: utterance,
	})
}

func TestFullOrderingFlow(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	result := say(machine, session, "I'd like to place an order")
	if result.State != model.StateOrdering {
		t.Fatalf("state = %s, want Ordering", result.State)
	}

	result = say(machine, session, "two large margheritas with extra cheese")
	if result.State != model.StateOrdering {
		t.Fatalf("state = %s, want Ordering while pickup is missing", result.State)
	}
	if !strings.Contains(result.PromptText, "ready for pickup") {
		t.Fatalf("expected a pickup prompt, got %q", result.PromptText)
	}

	result = say(machine, session, "at 18:30")
	if result.State != model.StateConfirming {
		t.Fatalf("state = %s, want Confirming", result.State)
	}
	if !strings.Contains(result.PromptText, "Should I place the order?") {
		t.Fatalf("unexpected confirm prompt %q", result.PromptText)
	}
	wantSummary := "2 x Margherita (Large) with Extra Cheese, ready at 18:30"
	if result.Metadata[model.MetaOrderItems] != wantSummary {
		t.Fatalf("order.items = %q, want %q", result.Metadata[model.MetaOrderItems], wantSummary)
	}

	result = say(machine, session, "yes")
	if result.State != model.StateCompleted {
		t.Fatalf("state = %s, want Completed", result.State)
	}
	if !result.IsSessionComplete {
		t.Fatal("completed order should end the session")
	}
	if !strings.Contains(result.PromptText, "Order confirmed:") {
		t.Fatalf("unexpected completion prompt %q", result.PromptText)
	}
	if !strings.Contains(result.PromptText, "$23.54") {
		t.Fatalf("prompt should carry the total, got %q", result.PromptText)
	}
	if !strings.HasPrefix(result.Metadata[model.MetaOrderCode], "ORD-202603141830-") {
		t.Fatalf("order.code = %q", result.Metadata[model.MetaOrderCode])
	}
	if result.Metadata[model.MetaOrderConfirm] != "persisted" {
		t.Fatalf("order.confirmation = %q, want persisted", result.Metadata[model.MetaOrderConfirm])
	}
	if result.Metadata[model.MetaOrderTotal] != "23.54" {
		t.Fatalf("order.total = %q, want 23.54", result.Metadata[model.MetaOrderTotal])
	}
	if _, ok := result.Metadata[model.MetaSlotProductID]; ok {
		t.Fatal("slot mirrors should be cleared after finalization")
	}
	if result.Slots.Product.IsFilled {
		t.Fatal("slots should be empty after finalization")
	}
}

func TestVariantAndQuantityPrompts(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")
	session.TransitionTo(model.StateOrdering)

	result := say(machine, session, "a lemonade please")
	// Lemonade has a default Small variant, so the next gap is modifiers
	// free products skip straight to pickup when quantity arrived as "a".
	if result.State != model.StateOrdering {
		t.Fatalf("state = %s, want Ordering", result.State)
	}
	if !strings.Contains(result.PromptText, "ready for pickup") {
		t.Fatalf("expected a pickup prompt, got %q", result.PromptText)
	}

	session = model.NewSession("caller-2")
	session.TransitionTo(model.StateOrdering)
	result = say(machine, session, "margherita with olives at 18:30")
	if !strings.Contains(result.PromptText, "How many Margherita") {
		t.Fatalf("expected a quantity prompt, got %q", result.PromptText)
	}
}

func TestThrottledSlotStaysRecoverable(t *testing.T) {
	machine, finalizer := newTestMachine(t, 1)
	session := model.NewSession("caller-1")

	// Fill the 18:30 slot before the dialog tries to commit.
	variantID := 11
	_, err := finalizer.Finalize(context.Background(), &order.Draft{
		ProductID: 1, ProductName: "Margherita", VariantID: &variantID,
		Quantity: 1, PickupAt: time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC),
		Summary: "1 x Margherita (Large)",
	})
	if err != nil {
		t.Fatalf("seed Finalize err: %v", err)
	}

	say(machine, session, "hello there")
	say(machine, session, "two large margheritas with extra cheese")
	result := say(machine, session, "at 18:30")
	if result.State != model.StateConfirming {
		t.Fatalf("state = %s, want Confirming", result.State)
	}

	result = say(machine, session, "yes")
	if result.State != model.StateOrdering {
		t.Fatalf("state = %s, want Ordering after a full slot", result.State)
	}
	if result.IsSessionComplete {
		t.Fatal("a throttled order must keep the session alive")
	}
	if !strings.Contains(result.PromptText, "fully booked") {
		t.Fatalf("unexpected prompt %q", result.PromptText)
	}
	if result.Metadata[model.MetaOrderConfirm] != "collecting" {
		t.Fatalf("order.confirmation = %q, want collecting", result.Metadata[model.MetaOrderConfirm])
	}
	if result.Metadata[model.MetaOrderFinal] != "false" {
		t.Fatalf("order.finalize = %q, want false", result.Metadata[model.MetaOrderFinal])
	}
	if !result.Slots.Product.IsFilled {
		t.Fatal("slots must survive a throttled finalize")
	}
}

func TestEditRequestFromStartMovesToModifying(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	result := machine.Handle(context.Background(), session, model.Event{
		Type:          model.EventUtterance,
		UtteranceText: "I need to edit my order",
		Metadata:      map[string]string{model.MetaIntentLabel: analysis.LabelModifyOrder},
	})
	if result.State != model.StateModifying {
		t.Fatalf("state = %s, want Modifying", result.State)
	}
	if !strings.Contains(result.PromptText, "needs to change") {
		t.Fatalf("unexpected prompt %q", result.PromptText)
	}

	// The keyword alone gets there too, without a classifier label.
	session = model.NewSession("caller-2")
	result = say(machine, session, "can I edit my order")
	if result.State != model.StateModifying {
		t.Fatalf("state = %s, want Modifying on the edit keyword", result.State)
	}
}

func TestModifyingFlow(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	say(machine, session, "I need to edit my order")

	result := say(machine, session, "swap the lemonade for a tiramisu please")
	if result.State != model.StateModifying {
		t.Fatalf("state = %s, want Modifying", result.State)
	}
	if !strings.Contains(result.PromptText, "Anything else you'd like to change?") {
		t.Fatalf("unexpected prompt %q", result.PromptText)
	}

	say(machine, session, "and add an extra cheese")

	result = say(machine, session, "that's all")
	if result.State != model.StateConfirming {
		t.Fatalf("state = %s, want Confirming after the completion cue", result.State)
	}
	wantItems := "swap the lemonade tiramisu, add extra cheese"
	if result.Metadata[model.MetaOrderItems] != wantItems {
		t.Fatalf("order.items = %q, want %q", result.Metadata[model.MetaOrderItems], wantItems)
	}
	if !strings.Contains(result.PromptText, "Your order now has "+wantItems) {
		t.Fatalf("unexpected confirm prompt %q", result.PromptText)
	}
}

func TestModifyingGuardRedirects(t *testing.T) {
	machine, _ := newTestMachine(t, 20)

	session := model.NewSession("caller-1")
	say(machine, session, "I need to edit my order")
	result := say(machine, session, "actually, cancel the whole thing")
	if result.State != model.StateCancelling {
		t.Fatalf("state = %s, want Cancelling", result.State)
	}

	session = model.NewSession("caller-2")
	say(machine, session, "I need to edit my order")
	result = say(machine, session, "what's the status of my order")
	if result.State != model.StateCheckingStatus {
		t.Fatalf("state = %s, want CheckingStatus", result.State)
	}
}

func TestTimeoutInModifying(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	say(machine, session, "I need to edit my order")

	result := machine.Handle(context.Background(), session, model.Event{Type: model.EventTimeout})
	if result.State != model.StateModifying {
		t.Fatalf("state = %s, a timeout must not advance the dialog", result.State)
	}
	if !strings.Contains(result.PromptText, "change something else") {
		t.Fatalf("unexpected nudge %q", result.PromptText)
	}
}

func TestCancellationFlow(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	result := say(machine, session, "I need to cancel an order")
	if result.State != model.StateCancelling {
		t.Fatalf("state = %s, want Cancelling", result.State)
	}

	// Three alphanumerics cannot form a code, so the machine re-prompts.
	result = say(machine, session, "abc")
	if result.State != model.StateCancelling {
		t.Fatalf("state = %s, want Cancelling while no code arrived", result.State)
	}
	if !strings.Contains(result.PromptText, "order code") {
		t.Fatalf("unexpected re-prompt %q", result.PromptText)
	}

	result = say(machine, session, "the code is TA-9876")
	if result.State != model.StateConfirming {
		t.Fatalf("state = %s, want Confirming", result.State)
	}
	if !strings.Contains(result.PromptText, "TA-9876") {
		t.Fatalf("prompt should echo the code, got %q", result.PromptText)
	}

	result = say(machine, session, "yes")
	if result.State != model.StateCancelled {
		t.Fatalf("state = %s, want Cancelled", result.State)
	}
	if !result.IsSessionComplete {
		t.Fatal("cancellation should end the session")
	}
	if !strings.Contains(result.PromptText, "TA-9876 is cancelled") {
		t.Fatalf("unexpected prompt %q", result.PromptText)
	}
}

func TestStatusFlow(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	result := say(machine, session, "where is my order")
	if result.State != model.StateCheckingStatus {
		t.Fatalf("state = %s, want CheckingStatus", result.State)
	}

	result = say(machine, session, "TA-1042")
	if result.State != model.StateCheckingStatus {
		t.Fatalf("state = %s, should stay in CheckingStatus", result.State)
	}
	if !strings.Contains(result.PromptText, "TA-1042") {
		t.Fatalf("prompt should echo the code, got %q", result.PromptText)
	}

	// Short negations stay below the 4-alphanumeric code fallback.
	result = say(machine, session, "no")
	if result.State != model.StateOrdering {
		t.Fatalf("state = %s, want Ordering after negation", result.State)
	}
}

func TestTerminalSessionReplaysClosingPrompt(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")
	session.TransitionTo(model.StateCompleted)

	result := say(machine, session, "hello?")
	if !result.IsSessionComplete {
		t.Fatal("terminal sessions stay complete")
	}
	if !strings.Contains(result.PromptText, "already finished") {
		t.Fatalf("unexpected prompt %q", result.PromptText)
	}
	if result.State != model.StateCompleted {
		t.Fatalf("state = %s, terminal state must not move", result.State)
	}
}

func TestEmptyUtterance(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	result := say(machine, session, "   ")
	if result.State != model.StateStart {
		t.Fatalf("state = %s, empty input must not advance", result.State)
	}
	if !strings.Contains(result.PromptText, "didn't catch") {
		t.Fatalf("unexpected prompt %q", result.PromptText)
	}
}

func TestFallbackIntentMovesToError(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	result := machine.Handle(context.Background(), session, model.Event{
		Type:          model.EventUtterance,
		UtteranceText: "purple monkey dishwasher",
		Metadata:      map[string]string{model.MetaIntentLabel: analysis.LabelFallback},
	})
	if result.State != model.StateError {
		t.Fatalf("state = %s, want Error", result.State)
	}
	if result.IsSessionComplete {
		t.Fatal("the error state is recoverable, not terminal")
	}
}

func TestTimeoutNudgesWithoutMutating(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	say(machine, session, "start an order")
	say(machine, session, "two large margheritas")
	before := session.Context.Slots.Snapshot()

	result := machine.Handle(context.Background(), session, model.Event{Type: model.EventTimeout})
	if result.State != model.StateOrdering {
		t.Fatalf("state = %s, a timeout must not advance the dialog", result.State)
	}
	if !strings.Contains(result.PromptText, "still here") {
		t.Fatalf("unexpected nudge %q", result.PromptText)
	}

	after := session.Context.Slots.Snapshot()
	if before.Product.IsFilled != after.Product.IsFilled || before.Quantity.IsFilled != after.Quantity.IsFilled {
		t.Fatal("a timeout must not touch the slots")
	}
}

func TestSystemEventReplaysLastPrompt(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	first := say(machine, session, "hello there")
	replay := machine.Handle(context.Background(), session, model.Event{Type: model.EventSystem})
	if replay.PromptText != first.PromptText {
		t.Fatalf("replay = %q, want %q", replay.PromptText, first.PromptText)
	}
	if replay.State != first.State {
		t.Fatalf("replay state = %s, want %s", replay.State, first.State)
	}
}

func TestSystemEventMergesMetadata(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	say(machine, session, "hello there")
	result := machine.Handle(context.Background(), session, model.Event{
		Type:     model.EventSystem,
		Metadata: map[string]string{"channel.name": "kiosk-3"},
	})
	if result.Metadata["channel.name"] != "kiosk-3" {
		t.Fatalf("merged metadata missing, got %v", result.Metadata)
	}
}

func TestNegationInConfirmingReturnsToOrdering(t *testing.T) {
	machine, _ := newTestMachine(t, 20)
	session := model.NewSession("caller-1")

	say(machine, session, "start an order")
	say(machine, session, "two large margheritas with extra cheese")
	say(machine, session, "at 18:30")

	result := say(machine, session, "wait, not yet")
	if result.State != model.StateOrdering {
		t.Fatalf("state = %s, want Ordering after negation", result.State)
	}
	if !result.Slots.Product.IsFilled {
		t.Fatal("negation must keep the collected slots")
	}
}
