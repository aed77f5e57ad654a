// Package events публикует события жизненного цикла заказов в Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Типы событий жизненного цикла заказа.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderDelivered     = "order.delivered"
)

// OrderEvent описывает событие жизненного цикла заказа для внешних потребителей.
type OrderEvent struct {
	Type         string    `json:"type"`
	OrderID      int64     `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	Status       string    `json:"status,omitempty"`
	TotalCents   int64     `json:"total,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Producer пишет события заказов в топик Kafka. Сообщения с одним номером
// заказа попадают в одну партицию за счёт ключа.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer создаёт продюсер для указанных брокеров и топика.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

// Publish отправляет событие заказа. Для несконфигурированного продюсера
// вызов является no-op.
func (p *Producer) Publish(ctx context.Context, event OrderEvent) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: data,
	})
}

// Close освобождает ресурсы продюсера.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
