package order

import (
	"strings"
	"time"
)

// Order statuses as persisted. Transport input is normalized through
// NormalizeStatus so "in_progress" and "Preparing" land on the same name.
const (
	StatusReceived      = "Received"
	StatusInPreparation = "InPreparation"
	StatusReady         = "Ready"
	StatusCompleted     = "Completed"
	StatusCancelled     = "Cancelled"
)

var statusSynonyms = map[string]string{
	"received":      StatusReceived,
	"pending":       StatusReceived,
	"queued":        StatusReceived,
	"inprogress":    StatusInPreparation,
	"inpreparation": StatusInPreparation,
	"preparing":     StatusInPreparation,
	"prep":          StatusInPreparation,
	"ready":         StatusReady,
	"completed":     StatusCompleted,
	"done":          StatusCompleted,
	"finished":      StatusCompleted,
	"cancelled":     StatusCancelled,
	"canceled":      StatusCancelled,
}

// NormalizeStatus maps a free-form status string onto the catalog name.
func NormalizeStatus(status string) (string, bool) {
	sanitized := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(status, "_", ""), " ", ""))
	if sanitized == "" {
		return "", false
	}
	normalized, ok := statusSynonyms[sanitized]
	return normalized, ok
}

// Order is a committed takeaway order.
type Order struct {
	ID        int       `json:"id"`
	ShopID    int       `json:"shopId"`
	ChannelID int       `json:"channelId"`
	Status    string    `json:"status"`
	Code      string    `json:"code"`
	PickupAt  time.Time `json:"pickupAt"`
	CreatedAt time.Time `json:"createdAt"`
	Total     float64   `json:"total"`
	Notes     string    `json:"notes,omitempty"`
	Items     []Item    `json:"items"`
}

// Item is a single order line. VariantID is nil when the product was
// ordered without a variant.
type Item struct {
	ProductID   int      `json:"productId"`
	ProductName string   `json:"productName"`
	VariantID   *int     `json:"variantId,omitempty"`
	VariantName string   `json:"variantName,omitempty"`
	Quantity    int      `json:"quantity"`
	UnitPrice   float64  `json:"unitPrice"`
	Subtotal    float64  `json:"subtotal"`
	Modifiers   []string `json:"modifiers,omitempty"`
}

// AuditEntry records an order lifecycle event alongside the order row.
type AuditEntry struct {
	OrderID   int       `json:"orderId"`
	EventType string    `json:"eventType"`
	CreatedAt time.Time `json:"createdAt"`
	Payload   string    `json:"payload"`
}
