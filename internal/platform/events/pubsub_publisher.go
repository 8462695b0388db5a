package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/shopspring/decimal"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

// CartEventMessage is the JSON payload published for every cart mutation.
type CartEventMessage struct {
	EventID       string           `json:"eventId"`
	Kind          string           `json:"kind"`
	SessionID     string           `json:"sessionId"`
	OccurredAt    time.Time        `json:"occurredAt"`
	Items         []CartEventLine  `json:"items"`
	AppliedCoupon *CartEventCoupon `json:"appliedCoupon,omitempty"`
	Totals        CartEventTotals  `json:"totals"`
}

// CartEventLine mirrors a cart row.
type CartEventLine struct {
	ID        domain.ProductID `json:"id"`
	Title     string           `json:"title"`
	UnitPrice decimal.Decimal  `json:"unitPrice"`
	Quantity  int              `json:"quantity"`
	LineTotal decimal.Decimal  `json:"lineTotal"`
}

// CartEventCoupon describes the coupon active when the event fired.
type CartEventCoupon struct {
	Code      string    `json:"code"`
	Kind      string    `json:"kind"`
	Amount    string    `json:"amount"`
	AppliedAt time.Time `json:"appliedAt"`
}

// CartEventTotals carries the priced breakdown.
type CartEventTotals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Discount  decimal.Decimal `json:"discount"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// PubSubCartEventPublisher publishes cart events to a Pub/Sub topic, ordered per session.
type PubSubCartEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.CartEventSink = (*PubSubCartEventPublisher)(nil)

// NewPubSubCartEventPublisher constructs a Pub/Sub backed cart event sink.
func NewPubSubCartEventPublisher(topic *pubsub.Topic) (*PubSubCartEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub cart event publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubCartEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishCartEvent sends evt and waits for the server acknowledgement.
func (p *PubSubCartEventPublisher) PublishCartEvent(ctx context.Context, evt services.CartEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub cart event publisher: not initialised")
	}

	data, err := p.marshal(NewCartEventMessage(evt))
	if err != nil {
		return fmt.Errorf("marshal cart event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", evt.ID)
	setAttr(attrs, "sessionId", evt.SessionID)
	setAttr(attrs, "kind", string(evt.Kind))

	orderingKey := strings.TrimSpace(evt.SessionID)
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: orderingKey,
	})

	if _, err := result.Get(ctx); err != nil {
		if orderingKey != "" {
			p.topic.ResumePublish(orderingKey)
		}
		return fmt.Errorf("publish cart event: %w", err)
	}
	return nil
}

// NewCartEventMessage converts a cart event into its wire form.
func NewCartEventMessage(evt services.CartEvent) CartEventMessage {
	msg := CartEventMessage{
		EventID:    evt.ID,
		Kind:       string(evt.Kind),
		SessionID:  evt.SessionID,
		OccurredAt: evt.OccurredAt.UTC(),
		Items:      make([]CartEventLine, 0, len(evt.Items)),
		Totals: CartEventTotals{
			Subtotal:  evt.Totals.Subtotal,
			Shipping:  evt.Totals.Shipping,
			Discount:  evt.Totals.Discount,
			Tax:       evt.Totals.Tax,
			Total:     evt.Totals.Total,
			ItemCount: evt.Totals.ItemCount,
		},
	}
	for _, item := range evt.Items {
		msg.Items = append(msg.Items, CartEventLine{
			ID:        item.ID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal(),
		})
	}
	if evt.AppliedCoupon != nil {
		msg.AppliedCoupon = &CartEventCoupon{
			Code:      evt.AppliedCoupon.Code,
			Kind:      string(evt.AppliedCoupon.Kind),
			Amount:    evt.AppliedCoupon.Amount.String(),
			AppliedAt: evt.AppliedCoupon.AppliedAt.UTC(),
		}
	}
	return msg
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
