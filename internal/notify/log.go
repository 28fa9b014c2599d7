package notify

import (
	"context"
	"log"

	model "github.com/takeawayhq/voicedesk/backend/internal/model/order"
)

// LogNotifier is the broker-less fallback used when no NATS URL is
// configured. It only writes to the process log.
type LogNotifier struct{}

// OrderCreated logs the committed order.
func (LogNotifier) OrderCreated(_ context.Context, o *model.Order) {
	log.Printf("[notify] order created: %s total %.2f pickup %s", o.Code, o.Total, o.PickupAt.Format("15:04"))
}

// TicketCreated logs the derived kitchen ticket.
func (LogNotifier) TicketCreated(_ context.Context, o *model.Order) {
	log.Printf("[notify] kitchen ticket created for order %s", o.Code)
}
