package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventType 订单事件类型，同时作为路由键后缀
type EventType string

const (
	EventOrderPlaced     EventType = "placed"
	EventOrderPaid       EventType = "paid"
	EventOrderStatus     EventType = "status_changed"
	EventItemCancelled   EventType = "item_cancelled"
	EventReturnRequested EventType = "return_requested"
	EventReturnAccepted  EventType = "return_accepted"
	EventReturnRejected  EventType = "return_rejected"
)

// OrderEvent 发布到订单交换机的消息体
type OrderEvent struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	Status     string          `json:"status,omitempty"`
	ItemID     string          `json:"item_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RoutingKey 形如 order.placed
func (e *OrderEvent) RoutingKey() string {
	return "order." + string(e.Type)
}

// Publisher 订单事件发布接口
type Publisher interface {
	Publish(ctx context.Context, evt *OrderEvent) error
	Close() error
}

// channel 抽象出发布所需的通道方法，*amqp.Channel 满足该接口
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher 基于 topic 交换机的发布者，复用单个通道并在失败后重建
type RabbitPublisher struct {
	exchange string
	open     func() (channel, error)
	logger   *zap.Logger

	mu sync.Mutex
	ch channel
}

// NewRabbitPublisher 创建发布者并声明交换机
func NewRabbitPublisher(cm *ConnectionManager, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	p := newPublisher(exchange, func() (channel, error) { return cm.Channel() }, logger)
	cm.OnReconnected(func() {
		p.mu.Lock()
		p.reset()
		p.mu.Unlock()
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(exchange string, open func() (channel, error), logger *zap.Logger) *RabbitPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitPublisher{exchange: exchange, open: open, logger: logger}
}

// channel 调用方需持有锁
func (p *RabbitPublisher) channel() (channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, err := p.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	p.ch = ch
	return ch, nil
}

func (p *RabbitPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

// Publish 以持久化 JSON 消息发布事件
func (p *RabbitPublisher) Publish(ctx context.Context, evt *OrderEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, p.exchange, evt.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Timestamp:    evt.OccurredAt,
		Type:         string(evt.Type),
		Body:         body,
	})
	if err != nil {
		// 通道出错后不可复用，下次发布重新打开
		p.reset()
		return fmt.Errorf("failed to publish %s: %w", evt.RoutingKey(), err)
	}

	p.logger.Debug("order event published",
		zap.String("routing_key", evt.RoutingKey()),
		zap.Int64("order_id", evt.OrderID))
	return nil
}

// Close 关闭通道
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// NopPublisher 消息队列未启用时使用
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, evt *OrderEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
