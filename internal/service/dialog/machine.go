package dialog

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	analysis "github.com/takeawayhq/voicedesk/backend/internal/analysis/intent"
	model "github.com/takeawayhq/voicedesk/backend/internal/model/dialog"
	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	"github.com/takeawayhq/voicedesk/backend/internal/service/order"
)

// Clock supplies the current instant for pickup validation and timeouts.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Machine is the dialog engine. It owns no session storage and no
// persistence; it consumes one event under the session lock and produces
// exactly one prompt.
type Machine struct {
	menu      menu.Provider
	finalizer *order.Finalizer
	extractor *Extractor
	clock     Clock
}

// NewMachine wires the engine. minLead bounds how soon a pickup time may
// be requested; zero selects the ten-minute default.
func NewMachine(provider menu.Provider, finalizer *order.Finalizer, clock Clock, minLead time.Duration) *Machine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Machine{
		menu:      provider,
		finalizer: finalizer,
		extractor: NewExtractor(minLead),
		clock:     clock,
	}
}

var (
	affirmationWords = []string{"yes", "yep", "correct", "confirm", "sure", "do it", "go ahead"}
	negationWordsSet = []string{"no", "not", "wait", "hold on", "stop", "cancel that", "nevermind"}
	completionCues   = []string{"done", "finish", "that's all", "that's it", "place the order", "ready to pay", "confirm"}
	modifyKeywords   = []string{"change", "modify", "swap"}
	// Start additionally accepts "edit"; mid-order it would collide with
	// natural item phrasing.
	startModifyKeywords = []string{"modify", "change", "swap", "edit"}
	startGuardWords     = []string{"status", "where", "ready", "pickup"}

	orderCodePattern = regexp.MustCompile(`[A-Z]{2,}-?\d{2,}`)

	itemStopWords = map[string]struct{}{
		"i": {}, "would": {}, "like": {}, "to": {}, "a": {}, "an": {},
		"and": {}, "please": {}, "order": {}, "get": {}, "me": {},
		"for": {}, "just": {}, "with": {}, "without": {},
	}
)

// Handle dispatches one event for the session. The caller must hold the
// session lock. Every path produces a prompt; infrastructure failures are
// logged and surfaced as the Error state rather than as a Go error.
func (m *Machine) Handle(ctx context.Context, s *model.Session, ev model.Event) model.Result {
	utterance := strings.TrimSpace(ev.UtteranceText)
	normalized := strings.ToLower(utterance)

	label := ""
	if ev.Metadata != nil {
		label = ev.Metadata[model.MetaIntentLabel]
		if label != "" {
			s.Context.IntentLast = label
			if score := ev.Metadata[model.MetaIntentScore]; score != "" {
				s.Context.IntentScore = score
			}
		}
	}

	switch ev.Type {
	case model.EventTimeout:
		return m.handleTimeout(s)
	case model.EventSystem:
		return m.handleSystem(s, ev)
	}

	s.Context.LastUtterance = utterance

	if s.State.IsTerminal() {
		return m.finish(s, "This session is already finished. Say \"start\" if you need to begin again.", true)
	}
	if normalized == "" {
		return m.finish(s, "I didn't catch that. Could you repeat it?", false)
	}
	if strings.EqualFold(label, analysis.LabelFallback) {
		return m.handleFallback(s)
	}

	switch s.State {
	case model.StateStart:
		return m.handleStart(s, normalized, label)
	case model.StateOrdering:
		return m.handleOrdering(ctx, s, utterance, normalized, label)
	case model.StateModifying:
		return m.handleModifying(s, utterance, normalized, label)
	case model.StateCancelling:
		return m.handleCancelling(s, utterance, normalized, label)
	case model.StateCheckingStatus:
		return m.handleCheckingStatus(s, utterance, normalized, label)
	case model.StateConfirming:
		return m.handleConfirming(ctx, s, normalized, label)
	default:
		return m.handleFallback(s)
	}
}

func (m *Machine) handleStart(s *model.Session, normalized, label string) model.Result {
	switch {
	case strings.EqualFold(label, analysis.LabelCheckStatus) || containsAny(normalized, startGuardWords):
		s.TransitionTo(model.StateCheckingStatus)
		return m.finish(s, "Sure, what order code should I look up?", false)

	case strings.EqualFold(label, analysis.LabelCancelOrder) || strings.Contains(normalized, "cancel"):
		s.TransitionTo(model.StateCancelling)
		return m.finish(s, "Okay, let's cancel an order. What's the code?", false)

	case strings.EqualFold(label, analysis.LabelModifyOrder) || containsAny(normalized, startModifyKeywords):
		s.TransitionTo(model.StateModifying)
		return m.finish(s, "Tell me what needs to change in your order.", false)

	case strings.EqualFold(label, analysis.LabelGreeting):
		s.TransitionTo(model.StateOrdering)
		return m.finish(s, "Hi there! What would you like to order today?", false)

	default:
		s.TransitionTo(model.StateOrdering)
		if len(s.Context.RequestedItems) == 0 {
			return m.finish(s, "Welcome back! What would you like to order today?", false)
		}
		return m.finish(s, "What else can I add to your order?", false)
	}
}

func (m *Machine) handleOrdering(ctx context.Context, s *model.Session, utterance, normalized, label string) model.Result {
	slots := s.Context.Slots

	switch {
	case strings.EqualFold(label, analysis.LabelCheckStatus) || strings.Contains(normalized, "status"):
		s.TransitionTo(model.StateCheckingStatus)
		return m.finish(s, "Sure, what order code should I look up?", false)

	case strings.EqualFold(label, analysis.LabelCancelOrder) || strings.Contains(normalized, "cancel"):
		s.TransitionTo(model.StateCancelling)
		return m.finish(s, "Okay, let's cancel an order. What's the code?", false)

	case strings.EqualFold(label, analysis.LabelModifyOrder) || containsAny(normalized, modifyKeywords):
		s.TransitionTo(model.StateModifying)
		return m.finish(s, "Tell me what to change in the order.", false)
	}

	negate := strings.EqualFold(label, analysis.LabelNegate) || containsAny(normalized, negationWordsSet)
	if negate && slots.Product() == nil && len(s.Context.RequestedItems) == 0 {
		return m.finish(s, "No problem. Let me know when you're ready to order.", false)
	}

	snapshot, err := m.menu.Snapshot(ctx)
	if err != nil {
		log.Printf("[dialog] menu snapshot failed for caller %s: %v", s.CallerID, err)
		s.TransitionTo(model.StateError)
		return m.finish(s, "I couldn't reach the menu just now. Let's try again in a moment.", false)
	}

	m.extractor.Apply(utterance, snapshot, slots, m.clock.Now(), strings.EqualFold(label, analysis.LabelNegate))

	if prompt := missingSlotPrompt(slots, snapshot); prompt != "" {
		return m.finish(s, prompt, false)
	}

	summary := buildSummary(slots)
	s.Context.ItemsSummary = summary
	s.Context.RequestedItems = []string{summary}
	s.TransitionTo(model.StateConfirming)
	return m.finish(s, fmt.Sprintf("You've asked for %s. Should I place the order?", summary), false)
}

func (m *Machine) handleModifying(s *model.Session, utterance, normalized, label string) model.Result {
	switch {
	case strings.EqualFold(label, analysis.LabelCancelOrder) || strings.Contains(normalized, "cancel"):
		s.TransitionTo(model.StateCancelling)
		return m.finish(s, "Okay, let's cancel an order. What's the code?", false)

	case strings.EqualFold(label, analysis.LabelCheckStatus) || strings.Contains(normalized, "status"):
		s.TransitionTo(model.StateCheckingStatus)
		return m.finish(s, "Sure, what order code should I look up?", false)
	}

	done := strings.EqualFold(label, analysis.LabelCompleteOrder) || containsAny(normalized, completionCues)
	if done && len(s.Context.RequestedItems) > 0 {
		summary := strings.Join(s.Context.RequestedItems, ", ")
		s.Context.ItemsSummary = summary
		s.TransitionTo(model.StateConfirming)
		return m.finish(s, fmt.Sprintf("Your order now has %s. Shall I finalize it?", summary), false)
	}

	if item := cleanItemDescription(normalized); item != "" {
		s.Context.RequestedItems = append(s.Context.RequestedItems, item)
	}
	return m.finish(s, "Anything else you'd like to change?", false)
}

func (m *Machine) handleCancelling(s *model.Session, utterance, normalized, label string) model.Result {
	if strings.EqualFold(label, analysis.LabelCheckStatus) || strings.Contains(normalized, "status") {
		s.TransitionTo(model.StateCheckingStatus)
		return m.finish(s, "Sure, what order code should I look up?", false)
	}

	if code, ok := extractOrderCode(utterance); ok {
		s.Context.OrderCode = code
		s.TransitionTo(model.StateConfirming)
		return m.finish(s, fmt.Sprintf("I found order %s. Do you want me to cancel it now?", code), false)
	}

	if isAffirmation(normalized, label) && s.Context.OrderCode != "" {
		code := s.Context.OrderCode
		s.TransitionTo(model.StateCancelled)
		return m.finish(s, fmt.Sprintf("Done. Order %s has been cancelled.", code), true)
	}

	if isNegation(normalized, label) {
		s.TransitionTo(model.StateOrdering)
		return m.finish(s, "No worries. What else can I help you with?", false)
	}

	return m.finish(s, "Could you share the order code you want to cancel?", false)
}

func (m *Machine) handleCheckingStatus(s *model.Session, utterance, normalized, label string) model.Result {
	if strings.EqualFold(label, analysis.LabelCancelOrder) || strings.Contains(normalized, "cancel") {
		s.TransitionTo(model.StateCancelling)
		return m.finish(s, "Okay, let's cancel an order. What's the code?", false)
	}

	if code, ok := extractOrderCode(utterance); ok {
		s.Context.OrderCode = code
		return m.finish(s, fmt.Sprintf("Order %s is currently being prepared. Anything else you need?", code), false)
	}

	if isAffirmation(normalized, label) && s.Context.OrderCode != "" {
		code := s.Context.OrderCode
		s.TransitionTo(model.StateCompleted)
		return m.finish(s, fmt.Sprintf("Order %s is ready for pickup.", code), true)
	}

	if isNegation(normalized, label) {
		s.TransitionTo(model.StateOrdering)
		return m.finish(s, "Alright. Do you want to place a new order?", false)
	}

	return m.finish(s, "Please provide the order code so I can look it up.", false)
}

func (m *Machine) handleConfirming(ctx context.Context, s *model.Session, normalized, label string) model.Result {
	switch {
	case isAffirmation(normalized, label):
		// A stored code in Confirming means a pending cancellation, not a
		// new order: the slot flow only reaches this state code-less.
		if s.Context.OrderCode != "" && s.Context.Slots.Product() == nil {
			code := s.Context.OrderCode
			s.TransitionTo(model.StateCancelled)
			return m.finish(s, fmt.Sprintf("Done. Order %s is cancelled.", code), true)
		}
		return m.finalizeOrder(ctx, s)

	case isNegation(normalized, label):
		s.Context.Confirmation = "collecting"
		s.TransitionTo(model.StateOrdering)
		return m.finish(s, "No problem. What should we adjust?", false)

	default:
		return m.finish(s, "Just to confirm, should I go ahead?", false)
	}
}

// finalizeOrder converts the completed slot set into a draft and hands it
// to the finalizer. Domain rejections keep the session alive in Ordering;
// only infrastructure failures reach the Error state.
func (m *Machine) finalizeOrder(ctx context.Context, s *model.Session) model.Result {
	slots := s.Context.Slots

	if slots.Product() == nil || slots.Quantity() == nil || !slots.ModifiersFilled() || slots.PickupTime() == nil {
		snapshot, err := m.menu.Snapshot(ctx)
		if err != nil {
			log.Printf("[dialog] menu snapshot failed for caller %s: %v", s.CallerID, err)
			s.TransitionTo(model.StateError)
			return m.finish(s, "I couldn't reach the menu just now. Let's try again in a moment.", false)
		}
		s.Context.Confirmation = "collecting"
		s.TransitionTo(model.StateOrdering)
		if prompt := missingSlotPrompt(slots, snapshot); prompt != "" {
			return m.finish(s, prompt, false)
		}
		return m.finish(s, "Let's finish your order first. What would you like to order?", false)
	}

	draft := buildDraft(slots, s.Context)
	s.Context.Finalize = true

	committed, err := m.finalizer.Finalize(ctx, draft)
	s.Context.Finalize = false

	if err != nil {
		if perr, ok := order.AsProcessingError(err); ok {
			log.Printf("[dialog] finalize rejected for caller %s: %s (%s)", s.CallerID, perr.Code, perr.Message)
			s.Context.Confirmation = "collecting"
			s.TransitionTo(model.StateOrdering)
			return m.finish(s, perr.Message, false)
		}
		log.Printf("[dialog] finalize failed for caller %s: %v", s.CallerID, err)
		s.Context.Confirmation = "error"
		s.TransitionTo(model.StateError)
		return m.finish(s, "I couldn't place the order because of a system problem. Let's try again.", false)
	}

	s.Context.OrderCode = committed.Code
	s.Context.OrderID = fmt.Sprintf("%d", committed.ID)
	s.Context.OrderTotal = fmt.Sprintf("%.2f", committed.Total)
	s.Context.OrderSummary = draft.Summary
	s.Context.ItemsSummary = draft.Summary
	s.Context.Confirmation = "persisted"
	s.Context.PickupISO = committed.PickupAt.Format(time.RFC3339)
	s.Context.PickupLocal = committed.PickupAt.Format("15:04")
	slots.ClearAll()

	s.TransitionTo(model.StateCompleted)
	return m.finish(s, fmt.Sprintf("Order confirmed: %s. The total is $%s. Your pickup code is %s.",
		draft.Summary, s.Context.OrderTotal, committed.Code), true)
}

func (m *Machine) handleFallback(s *model.Session) model.Result {
	s.TransitionTo(model.StateError)
	return m.finish(s, "I'm not sure how to handle that. Let's start over. What do you need help with?", false)
}

func (m *Machine) handleTimeout(s *model.Session) model.Result {
	var prompt string
	switch s.State {
	case model.StateOrdering:
		prompt = "I'm still here. Would you like to add anything else to your order?"
	case model.StateModifying:
		prompt = "Do you want to change something else in the order?"
	case model.StateConfirming:
		prompt = "Should I go ahead and place the order?"
	case model.StateCancelling:
		prompt = "Do you still want to cancel an order?"
	case model.StateCheckingStatus:
		prompt = "Do you still want me to check an order status?"
	default:
		prompt = "Are you still there?"
	}
	// Timeouts nudge, they never advance the dialog.
	return m.finish(s, prompt, false)
}

func (m *Machine) handleSystem(s *model.Session, ev model.Event) model.Result {
	if ev.Metadata != nil {
		s.Context.Merge(ev.Metadata)
	}
	if s.Context.LastPrompt != "" {
		return m.finish(s, s.Context.LastPrompt, s.State.IsTerminal())
	}
	return m.finish(s, "How can I help you with your takeaway order today?", false)
}

// finish is the single exit point: it records the prompt for System
// replay and assembles the metadata view.
func (m *Machine) finish(s *model.Session, prompt string, complete bool) model.Result {
	s.Context.LastPrompt = prompt
	s.Touch()
	return model.Result{
		State:             s.State,
		PromptText:        prompt,
		IsSessionComplete: complete,
		Metadata:          s.Context.MetadataView(),
		Slots:             s.Context.Slots.Snapshot(),
	}
}

// missingSlotPrompt walks the fixed completeness order and names the
// first unfilled slot, offering the concrete catalog choices.
func missingSlotPrompt(slots *model.SlotSet, snapshot []menu.SnapshotProduct) string {
	product := slots.Product()
	if product == nil {
		names := make([]string, 0, len(snapshot))
		for _, p := range snapshot {
			names = append(names, p.Name)
		}
		if len(names) == 0 {
			return "What would you like to order today?"
		}
		return fmt.Sprintf("What would you like to order today? We have %s.", strings.Join(names, ", "))
	}

	sp, known := findSnapshotProduct(snapshot, product.ProductID)

	if known && len(sp.Variants) > 1 && slots.Variant() == nil {
		names := make([]string, 0, len(sp.Variants))
		for _, v := range sp.Variants {
			names = append(names, v.Name)
		}
		return fmt.Sprintf("Which %s would you like: %s?", product.Name, strings.Join(names, " or "))
	}

	if slots.Quantity() == nil {
		return fmt.Sprintf("How many %s would you like?", product.Name)
	}

	if known && len(sp.Modifiers) > 0 && !slots.ModifiersFilled() {
		names := make([]string, 0, len(sp.Modifiers))
		for _, m := range sp.Modifiers {
			names = append(names, m.Name)
		}
		return fmt.Sprintf("Any extras for %s? We have %s, or just say none.", product.Name, strings.Join(names, ", "))
	}

	if slots.PickupTime() == nil {
		return fmt.Sprintf("When should the %s be ready for pickup?", product.Name)
	}

	return ""
}

// buildSummary renders the confirmation line, e.g.
// "2 x Margherita (Large) with Extra Cheese, ready at 18:30".
func buildSummary(slots *model.SlotSet) string {
	var b strings.Builder

	quantity := 1
	if q := slots.Quantity(); q != nil {
		quantity = *q
	}
	fmt.Fprintf(&b, "%d x %s", quantity, slots.Product().Name)

	if v := slots.Variant(); v != nil {
		fmt.Fprintf(&b, " (%s)", v.Name)
	}

	if mods := slots.Modifiers(); len(mods) > 0 {
		names := make([]string, 0, len(mods))
		for _, m := range mods {
			names = append(names, m.Name)
		}
		fmt.Fprintf(&b, " with %s", strings.Join(names, ", "))
	}

	if pickup := slots.PickupTime(); pickup != nil {
		fmt.Fprintf(&b, ", ready at %s", pickup.Format("15:04"))
	}

	return b.String()
}

func buildDraft(slots *model.SlotSet, c *model.Context) *order.Draft {
	draft := &order.Draft{
		ProductID:   slots.Product().ProductID,
		ProductName: slots.Product().Name,
		Quantity:    *slots.Quantity(),
		PickupAt:    *slots.PickupTime(),
		Summary:     buildSummary(slots),
	}
	if v := slots.Variant(); v != nil {
		id := v.VariantID
		draft.VariantID = &id
		draft.VariantName = v.Name
	}
	for _, mod := range slots.Modifiers() {
		draft.ModifierIDs = append(draft.ModifierIDs, mod.ModifierID)
	}
	if notes, ok := c.Extra["order.notes"]; ok {
		draft.Notes = notes
	}
	return draft
}

func isAffirmation(normalized, label string) bool {
	return strings.EqualFold(label, analysis.LabelAffirm) || containsAny(normalized, affirmationWords)
}

func isNegation(normalized, label string) bool {
	return strings.EqualFold(label, analysis.LabelNegate) || containsAny(normalized, negationWordsSet)
}

func containsAny(normalized string, words []string) bool {
	for _, word := range words {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}

// extractOrderCode pulls an order code out of free speech. A shaped code
// such as TA-1042 wins; otherwise any run of 4+ letters and digits yields
// a synthetic TA- code from its last four characters.
func extractOrderCode(utterance string) (string, bool) {
	upper := strings.ToUpper(utterance)
	if match := orderCodePattern.FindString(upper); match != "" {
		return match, true
	}

	var b strings.Builder
	for _, r := range upper {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	alnum := b.String()
	if len(alnum) < 4 {
		return "", false
	}
	return "TA-" + alnum[len(alnum)-4:], true
}

// cleanItemDescription strips filler words from a free-form modification
// request, keeping whatever meaningfully describes the change.
func cleanItemDescription(normalized string) string {
	kept := make([]string, 0, 8)
	for _, token := range strings.Fields(normalized) {
		token = strings.Trim(token, ".,!?")
		if token == "" {
			continue
		}
		if _, stop := itemStopWords[token]; stop {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}
