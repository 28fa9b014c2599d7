package order

import (
	"context"
	"time"
)

// SlotDuration is the pickup bucket width used for both throttling and
// kitchen grouping.
const SlotDuration = 15 * time.Minute

// DefaultMaxOrdersPerSlot caps how many orders one pickup bucket accepts.
const DefaultMaxOrdersPerSlot = 20

// FloorToSlot floors a pickup instant to its 15-minute bucket start in
// UTC. Flooring an already-floored timestamp is a no-op.
func FloorToSlot(pickup time.Time) time.Time {
	utc := pickup.UTC()
	return utc.Truncate(SlotDuration)
}

// SlotCounter counts already-persisted orders inside one pickup bucket.
type SlotCounter interface {
	CountInSlot(ctx context.Context, slotStart time.Time) (int, error)
}

// Throttle enforces the per-bucket order cap against persisted orders.
type Throttle struct {
	counter SlotCounter
	max     int
}

// NewThrottle builds a Throttle; maxOrdersPerSlot <= 0 selects the default.
func NewThrottle(counter SlotCounter, maxOrdersPerSlot int) *Throttle {
	if maxOrdersPerSlot <= 0 {
		maxOrdersPerSlot = DefaultMaxOrdersPerSlot
	}
	return &Throttle{counter: counter, max: maxOrdersPerSlot}
}

// CanPlace reports whether the bucket starting at slotStart still accepts
// an order.
func (t *Throttle) CanPlace(ctx context.Context, slotStart time.Time) (bool, error) {
	count, err := t.counter.CountInSlot(ctx, slotStart)
	if err != nil {
		return false, err
	}
	return count < t.max, nil
}
