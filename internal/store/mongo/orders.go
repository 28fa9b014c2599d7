package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	model "github.com/takeawayhq/voicedesk/backend/internal/model/order"
	"github.com/takeawayhq/voicedesk/backend/internal/service/order"
)

const (
	collectionOrders    = "orders"
	collectionAuditLogs = "audit_logs"
	collectionCounters  = "counters"

	orderCounterID = "orders"
)

// OrderRepository is the Mongo-backed order store. It shares the catalog
// resolution and pricing path with the in-memory store so both backends
// reject drafts with identical domain errors.
type OrderRepository struct {
	storage *Storage
	orders  *mongo.Collection
	audits  *mongo.Collection
	counts  *mongo.Collection
	catalog menu.Catalog
	clock   order.Clock
}

// NewOrderRepository builds the repository over an established connection.
func NewOrderRepository(storage *Storage, catalog menu.Catalog, clock order.Clock) *OrderRepository {
	db := storage.Database()
	return &OrderRepository{
		storage: storage,
		orders:  db.Collection(collectionOrders),
		audits:  db.Collection(collectionAuditLogs),
		counts:  db.Collection(collectionCounters),
		catalog: catalog,
		clock:   clock,
	}
}

type orderDoc struct {
	OrderID   int       `bson:"order_id"`
	ShopID    int       `bson:"shop_id"`
	ChannelID int       `bson:"channel_id"`
	Status    string    `bson:"status"`
	Code      string    `bson:"code"`
	PickupAt  time.Time `bson:"pickup_at"`
	CreatedAt time.Time `bson:"created_at"`
	Total     float64   `bson:"total"`
	Notes     string    `bson:"notes,omitempty"`
	Items     []itemDoc `bson:"items"`
}

type itemDoc struct {
	ProductID   int      `bson:"product_id"`
	ProductName string   `bson:"product_name"`
	VariantID   *int     `bson:"variant_id,omitempty"`
	VariantName string   `bson:"variant_name,omitempty"`
	Quantity    int      `bson:"quantity"`
	UnitPrice   float64  `bson:"unit_price"`
	Subtotal    float64  `bson:"subtotal"`
	Modifiers   []string `bson:"modifiers,omitempty"`
}

type auditDoc struct {
	OrderID   int       `bson:"order_id"`
	EventType string    `bson:"event_type"`
	CreatedAt time.Time `bson:"created_at"`
	Payload   string    `bson:"payload"`
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int    `bson:"seq"`
}

// CountInSlot counts live orders whose pickup falls inside the 15-minute
// bucket starting at slotStart.
func (r *OrderRepository) CountInSlot(ctx context.Context, slotStart time.Time) (int, error) {
	filter := bson.M{
		"pickup_at": bson.M{
			"$gte": slotStart,
			"$lt":  slotStart.Add(order.SlotDuration),
		},
		"status": bson.M{"$ne": model.StatusCancelled},
	}
	count, err := r.orders.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count slot orders: %w", err)
	}
	return int(count), nil
}

// Finalize resolves and prices the draft, then commits the order row, its
// audit entry, and the sequence bump in one transaction. The order code is
// derived from the sequence value, so it exists only after the row has an
// identity. Stock is reserved through the catalog before the transaction
// starts and restored when the commit fails, so an aborted transaction
// never leaves the counter decremented; the reservation sits outside the
// transaction because WithTransaction may retry its callback.
func (r *OrderRepository) Finalize(ctx context.Context, draft *order.Draft) (*model.Order, error) {
	products, err := r.catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	now := r.clock.Now()
	built, stockRef, err := order.BuildOrder(products, draft, now)
	if err != nil {
		return nil, err
	}

	if err := r.catalog.DecrementStock(ctx, stockRef.ProductID, stockRef.VariantID, stockRef.Quantity); err != nil {
		if errors.Is(err, menu.ErrInsufficientStock) {
			return nil, order.NewProcessingError(order.CodeStockUnavailable,
				fmt.Sprintf("We don't have enough %s left for today.", draft.ProductName))
		}
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	session, err := r.storage.StartSession()
	if err != nil {
		r.restoreStock(ctx, stockRef)
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		orderID, err := r.nextOrderID(sc)
		if err != nil {
			return nil, err
		}

		built.ID = orderID
		built.Code = order.GenerateCode(built.PickupAt, orderID)

		doc := toOrderDoc(built)
		if _, err := r.orders.InsertOne(sc, doc); err != nil {
			return nil, fmt.Errorf("failed to insert order: %w", err)
		}

		entry := order.NewAuditEntry(built, now)
		audit := auditDoc{
			OrderID:   entry.OrderID,
			EventType: entry.EventType,
			CreatedAt: entry.CreatedAt,
			Payload:   entry.Payload,
		}
		if _, err := r.audits.InsertOne(sc, audit); err != nil {
			return nil, fmt.Errorf("failed to insert audit entry: %w", err)
		}

		return built, nil
	})
	if err != nil {
		r.restoreStock(ctx, stockRef)
		return nil, err
	}

	return result.(*model.Order), nil
}

// restoreStock hands a failed commit's reservation back to the catalog.
func (r *OrderRepository) restoreStock(ctx context.Context, ref order.StockRef) {
	if err := r.catalog.RestoreStock(ctx, ref.ProductID, ref.VariantID, ref.Quantity); err != nil {
		log.Printf("[mongo] stock restore failed for product %d: %v", ref.ProductID, err)
	}
}

func (r *OrderRepository) nextOrderID(ctx context.Context) (int, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter counterDoc
	err := r.counts.FindOneAndUpdate(ctx,
		bson.M{"_id": orderCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to advance order counter: %w", err)
	}
	return counter.Seq, nil
}

// FindByCode loads one order by its pickup code.
func (r *OrderRepository) FindByCode(ctx context.Context, code string) (*model.Order, error) {
	var doc orderDoc
	err := r.orders.FindOne(ctx, bson.M{"code": code}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order %s: %w", code, err)
	}
	return fromOrderDoc(doc), nil
}

// UpdateStatus sets a new status on an existing order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID int, status string) error {
	result, err := r.orders.UpdateOne(ctx,
		bson.M{"order_id": orderID},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return fmt.Errorf("failed to update order %d status: %w", orderID, err)
	}
	if result.MatchedCount == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func toOrderDoc(o *model.Order) orderDoc {
	items := make([]itemDoc, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, itemDoc{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			VariantID:   item.VariantID,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
			Modifiers:   item.Modifiers,
		})
	}
	return orderDoc{
		OrderID:   o.ID,
		ShopID:    o.ShopID,
		ChannelID: o.ChannelID,
		Status:    o.Status,
		Code:      o.Code,
		PickupAt:  o.PickupAt,
		CreatedAt: o.CreatedAt,
		Total:     o.Total,
		Notes:     o.Notes,
		Items:     items,
	}
}

func fromOrderDoc(doc orderDoc) *model.Order {
	items := make([]model.Item, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, model.Item{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			VariantID:   item.VariantID,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
			Modifiers:   item.Modifiers,
		})
	}
	return &model.Order{
		ID:        doc.OrderID,
		ShopID:    doc.ShopID,
		ChannelID: doc.ChannelID,
		Status:    doc.Status,
		Code:      doc.Code,
		PickupAt:  doc.PickupAt,
		CreatedAt: doc.CreatedAt,
		Total:     doc.Total,
		Notes:     doc.Notes,
		Items:     items,
	}
}
