package dialog

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// State is one of the nine dialog states. Completed and Cancelled are
// terminal: once reached, further utterances only replay a closing prompt.
type State string

const (
	StateStart          State = "Start"
	StateOrdering       State = "Ordering"
	StateModifying      State = "Modifying"
	StateCancelling     State = "Cancelling"
	StateCheckingStatus State = "CheckingStatus"
	StateConfirming     State = "Confirming"
	StateCompleted      State = "Completed"
	StateCancelled      State = "Cancelled"
	StateError          State = "Error"
)

// IsTerminal reports whether the state accepts no further transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// EventType discriminates the inputs the state machine accepts.
type EventType string

const (
	EventUtterance EventType = "Utterance"
	EventSystem    EventType = "System"
	EventTimeout   EventType = "Timeout"
)

// Event is a single input to the state machine: a caller utterance, a
// system wake-up, or an idle timeout tick.
type Event struct {
	Type          EventType         `json:"type"`
	UtteranceText string            `json:"utteranceText,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Result is what one dispatched event produces.
type Result struct {
	State             State             `json:"state"`
	PromptText        string            `json:"promptText"`
	IsSessionComplete bool              `json:"isSessionComplete"`
	Metadata          map[string]string `json:"metadata"`
	Slots             SlotsSnapshot     `json:"slots"`
}

// Stable metadata keys consumed by the transport layer.
const (
	MetaIntentLabel  = "intent.label"
	MetaIntentScore  = "intent.score"
	MetaIntentLast   = "intent.last"
	MetaOrderItems   = "order.items"
	MetaOrderCode    = "order.code"
	MetaOrderConfirm = "order.confirmation"
	MetaOrderFinal   = "order.finalize"
	MetaOrderTotal   = "order.total"
	MetaOrderID      = "order.id"
	MetaOrderSummary = "order.summary"
	MetaPickupISO    = "order.pickup.iso"
	MetaPickupLocal  = "order.pickup.display"

	MetaSlotProductID   = "slot.product.id"
	MetaSlotProductName = "slot.product.name"
	MetaSlotVariantID   = "slot.variant.id"
	MetaSlotVariantName = "slot.variant.name"
	MetaSlotQuantity    = "slot.quantity"
	MetaSlotModifiers   = "slot.modifiers"
	MetaSlotPickup      = "slot.pickup"
)

// Context carries everything a session accumulates across turns. Known
// keys are typed fields; Extra holds only genuinely dynamic metadata
// merged in through System events.
type Context struct {
	RequestedItems []string
	Slots          *SlotSet

	IntentLast   string
	IntentScore  string
	OrderCode    string
	ItemsSummary string
	Confirmation string
	Finalize     bool
	OrderTotal   string
	OrderID      string
	OrderSummary string
	PickupISO    string
	PickupLocal  string

	LastPrompt    string
	LastUtterance string
	Extra         map[string]string
}

// NewContext returns an empty dialog context.
func NewContext() *Context {
	return &Context{Slots: NewSlotSet(), Extra: make(map[string]string)}
}

// Reset clears all accumulated state, used on session completion or restart.
func (c *Context) Reset() {
	*c = *NewContext()
}

// Merge folds transport-supplied metadata into the context, routing known
// keys onto their typed fields and everything else into Extra.
func (c *Context) Merge(metadata map[string]string) {
	for key, value := range metadata {
		switch strings.ToLower(key) {
		case MetaIntentLast:
			c.IntentLast = value
		case MetaIntentScore:
			c.IntentScore = value
		case MetaOrderCode:
			c.OrderCode = value
		case MetaOrderItems:
			c.ItemsSummary = value
		case MetaOrderConfirm:
			c.Confirmation = value
		case MetaOrderFinal:
			c.Finalize = strings.EqualFold(value, "true")
		default:
			c.Extra[key] = value
		}
	}
}

// MetadataView assembles the stable key/value contract from the typed
// fields, slot mirrors, and the open extension map.
func (c *Context) MetadataView() map[string]string {
	view := make(map[string]string, len(c.Extra)+16)
	for key, value := range c.Extra {
		view[key] = value
	}

	put := func(key, value string) {
		if value != "" {
			view[key] = value
		}
	}
	put(MetaIntentLast, c.IntentLast)
	put(MetaIntentScore, c.IntentScore)
	put(MetaOrderCode, c.OrderCode)
	put(MetaOrderItems, c.ItemsSummary)
	put(MetaOrderConfirm, c.Confirmation)
	put(MetaOrderTotal, c.OrderTotal)
	put(MetaOrderID, c.OrderID)
	put(MetaOrderSummary, c.OrderSummary)
	put(MetaPickupISO, c.PickupISO)
	put(MetaPickupLocal, c.PickupLocal)
	view[MetaOrderFinal] = strconv.FormatBool(c.Finalize)

	snap := c.Slots.Snapshot()
	if snap.Product.IsFilled {
		put(MetaSlotProductID, strconv.Itoa(*snap.Product.ProductID))
		put(MetaSlotProductName, snap.Product.Name)
	}
	if snap.Variant.IsFilled {
		put(MetaSlotVariantID, strconv.Itoa(*snap.Variant.VariantID))
		put(MetaSlotVariantName, snap.Variant.Name)
	}
	if snap.Quantity.IsFilled {
		put(MetaSlotQuantity, strconv.Itoa(*snap.Quantity.Quantity))
	}
	if snap.Modifiers.IsFilled {
		if snap.Modifiers.IsExplicitNone {
			view[MetaSlotModifiers] = "none"
		} else {
			names := make([]string, 0, len(snap.Modifiers.Selections))
			for _, m := range snap.Modifiers.Selections {
				names = append(names, m.Name)
			}
			view[MetaSlotModifiers] = strings.Join(names, ";")
		}
	}
	if snap.PickupTime.IsFilled {
		put(MetaSlotPickup, snap.PickupTime.Value.Format(time.RFC3339))
	}

	return view
}

// Session binds a caller to its dialog state. Owned by the session store;
// mutated only by the state machine while the per-session lock is held.
type Session struct {
	mu sync.Mutex

	CallerID  string
	State     State
	Context   *Context
	UpdatedAt time.Time
}

// NewSession starts a fresh session in the initial state.
func NewSession(callerID string) *Session {
	return &Session{
		CallerID:  callerID,
		State:     StateStart,
		Context:   NewContext(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Lock serializes event handling for this caller. A transport that
// delivers overlapping requests for the same session queues here instead
// of racing the slot set.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// TransitionTo moves the session to a new state and refreshes activity.
func (s *Session) TransitionTo(state State) {
	s.State = state
	s.Touch()
}

// Touch refreshes the last-activity timestamp used for idle eviction.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
