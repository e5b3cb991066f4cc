package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/services"
)

const (
	DefaultNotifyQueue = "notification.q"
	DefaultDLX         = "notification.dlx"
	DefaultDLQ         = "notification.dlq"
	defaultPrefetch    = 8
)

// EventHandler is what a delivered event is handed to. The dispatcher
// satisfies it.
type EventHandler interface {
	Handle(ctx context.Context, event domain.Event) services.DispatchResult
}

type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	Bindings []string
	DLX      string
	DLQ      string
	Prefetch int
}

func (c *ConsumerConfig) withDefaults() {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.Queue == "" {
		c.Queue = DefaultNotifyQueue
	}
	if len(c.Bindings) == 0 {
		c.Bindings = []string{"booking.*", "payment.*", "slot.*"}
	}
	if c.DLX == "" {
		c.DLX = DefaultDLX
	}
	if c.DLQ == "" {
		c.DLQ = DefaultDLQ
	}
	if c.Prefetch <= 0 {
		c.Prefetch = defaultPrefetch
	}
}

// NotificationConsumer feeds booking events from the queue into the
// notification dispatcher. Deliveries are acked once dispatched whatever
// the channel outcome; payloads that cannot be decoded are dead-lettered.
type NotificationConsumer struct {
	cfg     ConsumerConfig
	handler EventHandler
	log     logrus.FieldLogger

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewNotificationConsumer(cfg ConsumerConfig, handler EventHandler, log logrus.FieldLogger) *NotificationConsumer {
	cfg.withDefaults()
	return &NotificationConsumer{cfg: cfg, handler: handler, log: log}
}

func (c *NotificationConsumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbit dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel failed: %w", err)
	}

	fail := func(err error) error {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(c.cfg.Exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("declare exchange %s failed: %w", c.cfg.Exchange, err))
	}
	if err := ch.ExchangeDeclare(c.cfg.DLX, ExchangeKind, true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("declare dlx failed: %w", err))
	}
	if _, err := ch.QueueDeclare(c.cfg.DLQ, true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("declare dlq failed: %w", err))
	}
	if err := ch.QueueBind(c.cfg.DLQ, "#", c.cfg.DLX, false, nil); err != nil {
		return fail(fmt.Errorf("bind dlq failed: %w", err))
	}

	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": c.cfg.DLX,
	})
	if err != nil {
		return fail(fmt.Errorf("declare queue failed: %w", err))
	}
	for _, key := range c.cfg.Bindings {
		if err := ch.QueueBind(q.Name, key, c.cfg.Exchange, false, nil); err != nil {
			return fail(fmt.Errorf("bind queue key=%s failed: %w", key, err))
		}
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fail(fmt.Errorf("set qos failed: %w", err))
	}

	c.conn = conn
	c.ch = ch
	return nil
}

func (c *NotificationConsumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (c *NotificationConsumer) Run(ctx context.Context) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}

	c.log.WithField("queue", c.cfg.Queue).Info("notification consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *NotificationConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	log := c.log.WithField("routing_key", d.RoutingKey)

	var ev domain.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		log.WithError(err).Warn("undecodable event, dead-lettering")
		_ = d.Nack(false, false)
		return
	}
	if _, err := domain.ParseEventType(string(ev.Type)); err != nil {
		log.WithError(err).Warn("unknown event type, dead-lettering")
		_ = d.Nack(false, false)
		return
	}

	res := c.handler.Handle(ctx, ev)
	log.WithFields(logrus.Fields{
		"booking_ref": ev.Reference,
		"success":     res.Success,
	}).Debug("event dispatched")

	_ = d.Ack(false)
}
