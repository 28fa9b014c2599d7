package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	model "github.com/takeawayhq/voicedesk/backend/internal/model/order"
)

// Subjects published after a successful order commit.
const (
	SubjectOrderCreated  = "orders.created"
	SubjectTicketCreated = "kds.tickets.created"
)

// NATSNotifier publishes post-commit order events for the kitchen display
// and downstream consumers. Publishing is best effort: failures are
// logged, never returned.
type NATSNotifier struct {
	conn *nats.Conn
}

// NewNATSNotifier connects to the broker.
func NewNATSNotifier(url string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSNotifier{conn: conn}, nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	n.conn.Close()
}

type orderEvent struct {
	OrderID   int       `json:"orderId"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	PickupAt  time.Time `json:"pickupAt"`
	Total     float64   `json:"total"`
	Items     []item    `json:"items"`
	EmittedAt time.Time `json:"emittedAt"`
}

type item struct {
	ProductName string   `json:"productName"`
	VariantName string   `json:"variantName,omitempty"`
	Quantity    int      `json:"quantity"`
	Modifiers   []string `json:"modifiers,omitempty"`
}

// OrderCreated announces the committed order.
func (n *NATSNotifier) OrderCreated(ctx context.Context, o *model.Order) {
	n.publish(SubjectOrderCreated, o)
}

// TicketCreated announces the kitchen ticket derived from the order.
func (n *NATSNotifier) TicketCreated(ctx context.Context, o *model.Order) {
	n.publish(SubjectTicketCreated, o)
}

func (n *NATSNotifier) publish(subject string, o *model.Order) {
	event := orderEvent{
		OrderID:   o.ID,
		Code:      o.Code,
		Status:    o.Status,
		PickupAt:  o.PickupAt,
		Total:     o.Total,
		EmittedAt: time.Now().UTC(),
	}
	for _, i := range o.Items {
		event.Items = append(event.Items, item{
			ProductName: i.ProductName,
			VariantName: i.VariantName,
			Quantity:    i.Quantity,
			Modifiers:   i.Modifiers,
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[notify] failed to marshal %s event for order %s: %v", subject, o.Code, err)
		return
	}
	if err := n.conn.Publish(subject, payload); err != nil {
		log.Printf("[notify] failed to publish %s for order %s: %v", subject, o.Code, err)
	}
}
