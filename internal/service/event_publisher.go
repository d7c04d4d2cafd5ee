// Package service holds outbound integrations used by the session layer.
// Publishing is best effort: errors are logged and returned so callers can
// ignore them without interrupting the request.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/mosque-manager/internal/queue"
)

// EventPublisher sends security events to RabbitMQ.  A connection is dialled
// per event; these are rare enough that holding a channel open is not worth
// the reconnect bookkeeping.
type EventPublisher struct {
	URL    string
	Logger *slog.Logger
}

// NewEventPublisher returns nil when url is empty so callers can pass the
// result straight to the session layer, which treats nil as "disabled".
func NewEventPublisher(url string, log *slog.Logger) *EventPublisher {
	if url == "" {
		return nil
	}
	return &EventPublisher{URL: url, Logger: log}
}

// DefaultDialTimeout bounds the dial and AMQP handshake when the caller's
// context carries no deadline.
const DefaultDialTimeout = 5 * time.Second

// Publish declares the durable security queue and publishes ev as a
// persistent JSON message.  The whole exchange, handshake included, ends
// when ctx does.
func (p *EventPublisher) Publish(ctx context.Context, ev queue.SecurityEvent) error {
	timeout := DefaultDialTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		p.Logger.Warn("rabbitmq dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()
	// channel and queue RPCs take no context; closing the connection
	// unblocks them
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.Warn("rabbitmq channel open failed", "error", err)
		return ctxErr(ctx, err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.SecurityQueue, // name
		true,                // durable
		false,               // autoDelete
		false,               // exclusive
		false,               // noWait
		nil,                 // args
	); err != nil {
		p.Logger.Warn("rabbitmq queue declare failed", "error", err)
		return ctxErr(ctx, err)
	}

	pub, err := publishing(ev, time.Now())
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", queue.SecurityQueue, false, false, pub); err != nil {
		p.Logger.Warn("rabbitmq publish failed", "error", err, "kind", ev.Kind)
		return err
	}
	return nil
}

// ctxErr prefers the context's error when it ended the exchange.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func publishing(ev queue.SecurityEvent, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		Type:         string(ev.Kind),
		Body:         body,
	}, nil
}
