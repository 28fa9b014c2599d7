package order

import (
	"fmt"
	"time"

	model "github.com/takeawayhq/voicedesk/backend/internal/model/order"
)

// DefaultCancellationWindow is how long before pickup cancellations close.
const DefaultCancellationWindow = 10 * time.Minute

// Cancellation decides whether an order may still be cancelled.
type Cancellation struct {
	window time.Duration
}

// NewCancellation builds the eligibility rule; window <= 0 selects the default.
func NewCancellation(window time.Duration) *Cancellation {
	if window <= 0 {
		window = DefaultCancellationWindow
	}
	return &Cancellation{window: window}
}

// CanCancel reports eligibility and, when denied, a caller-facing reason.
// Cancelled, Completed, and Ready orders are never cancellable; otherwise
// cancellation closes once now passes pickup minus the window.
func (c *Cancellation) CanCancel(o *model.Order, now time.Time) (bool, string) {
	switch o.Status {
	case model.StatusCancelled:
		return false, "Order is already cancelled."
	case model.StatusCompleted:
		return false, "Completed orders cannot be cancelled."
	case model.StatusReady:
		return false, "Orders ready for pickup cannot be cancelled."
	}

	cutoff := o.PickupAt.Add(-c.window)
	if now.After(cutoff) {
		return false, fmt.Sprintf("Orders can no longer be cancelled within %d minutes of pickup.", int(c.window.Minutes()))
	}

	return true, ""
}
