package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	model "github.com/takeawayhq/voicedesk/backend/internal/model/order"
)

// ErrOrderNotFound is returned when no order matches the given code or id.
var ErrOrderNotFound = errors.New("order not found")

// MemoryStore implements Store against the in-memory catalog. The default
// backend for local runs and tests; its single mutex stands in for the
// database transaction.
type MemoryStore struct {
	mu      sync.Mutex
	catalog *menu.MemoryCatalog
	clock   Clock
	orders  map[int]*model.Order
	audits  []model.AuditEntry
	nextID  int
}

// NewMemoryStore builds the in-memory order store over the given catalog.
func NewMemoryStore(catalog *menu.MemoryCatalog, clock Clock) *MemoryStore {
	return &MemoryStore{
		catalog: catalog,
		clock:   clock,
		orders:  make(map[int]*model.Order),
		nextID:  1,
	}
}

// CountInSlot counts committed orders inside one 15-minute pickup bucket.
func (s *MemoryStore) CountInSlot(_ context.Context, slotStart time.Time) (int, error) {
	slotEnd := slotStart.Add(SlotDuration)

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, o := range s.orders {
		if o.Status == model.StatusCancelled {
			continue
		}
		if !o.PickupAt.Before(slotStart) && o.PickupAt.Before(slotEnd) {
			count++
		}
	}
	return count, nil
}

// Finalize resolves, prices, and commits the draft in one step. The store
// mutex spans resolution, stock decrement, and insertion, so concurrent
// finalizes for the same counter serialize instead of both passing the
// availability check. The decrement runs before the order gets an
// identity; a failed reservation leaves no order behind.
func (s *MemoryStore) Finalize(ctx context.Context, draft *Draft) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.catalog.Products(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	o, stock, err := BuildOrder(products, draft, now)
	if err != nil {
		return nil, err
	}

	if err := s.catalog.DecrementStock(ctx, stock.ProductID, stock.VariantID, stock.Quantity); err != nil {
		if errors.Is(err, menu.ErrInsufficientStock) {
			return nil, NewProcessingError(CodeStockUnavailable,
				fmt.Sprintf("We don't have enough %s left for today.", o.Items[0].ProductName))
		}
		return nil, err
	}

	o.ID = s.nextID
	s.nextID++
	o.Code = GenerateCode(o.PickupAt, o.ID)
	s.orders[o.ID] = o
	s.audits = append(s.audits, NewAuditEntry(o, now))

	return o, nil
}

// FindByCode looks an order up by its human-readable code.
func (s *MemoryStore) FindByCode(_ context.Context, code string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.Code == code {
			copied := *o
			return &copied, nil
		}
	}
	return nil, ErrOrderNotFound
}

// UpdateStatus moves an order to a new status.
func (s *MemoryStore) UpdateStatus(_ context.Context, orderID int, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	return nil
}

// AuditEntries returns a copy of the recorded audit trail.
func (s *MemoryStore) AuditEntries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.audits...)
}
