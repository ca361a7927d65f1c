// Package service holds adapters between the reservation protocol and
// outside systems.  EventPublisher forwards committed reservation changes
// to RabbitMQ.
package service

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/slot-calendar/internal/model"
    q "github.com/iliyamo/slot-calendar/internal/queue"
)

// ErrBrokerUnavailable is returned without dialing while the publisher is
// backing off after a failed connection attempt.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// EventPublisher publishes reservation events to the durable
// reservation.events queue over one long-lived channel.  A broken
// connection is dropped and redialed on the next publish, but not sooner
// than RetryAfter after a failed dial, so a broker outage costs writes at
// most one dial timeout per window.  Failures are returned, not logged;
// the caller decides how loud to be.
type EventPublisher struct {
    URL         string
    DialTimeout time.Duration
    RetryAfter  time.Duration
    Log         logrus.FieldLogger

    mu        sync.Mutex
    conn      *amqp.Connection
    ch        *amqp.Channel
    downUntil time.Time
    now       func() time.Time
}

// NewEventPublisher returns a publisher for the broker at url.  No
// connection is made until the first Publish.
func NewEventPublisher(url string, log logrus.FieldLogger) *EventPublisher {
    if log == nil {
        log = logrus.StandardLogger()
    }
    return &EventPublisher{
        URL:         url,
        DialTimeout: 2 * time.Second,
        RetryAfter:  30 * time.Second,
        Log:         log.WithField("component", "rabbitmq"),
        now:         time.Now,
    }
}

// Publish sends the event derived from h as a persistent JSON message.
func (p *EventPublisher) Publish(ctx context.Context, h model.HistoryEntry) error {
    body, err := json.Marshal(q.NewReservationEvent(h))
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    ch, err := p.channel()
    if err != nil {
        return err
    }
    if err := ch.PublishWithContext(ctx, "", q.ReservationEventsQueue, false, false, pub); err != nil {
        p.reset()
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}

// channel returns the open channel, dialing when there is none.  p.mu must
// be held.
func (p *EventPublisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    p.reset()
    if p.now().Before(p.downUntil) {
        return nil, ErrBrokerUnavailable
    }

    conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.DialTimeout)})
    if err != nil {
        p.downUntil = p.now().Add(p.RetryAfter)
        return nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        p.downUntil = p.now().Add(p.RetryAfter)
        return nil, fmt.Errorf("open channel: %w", err)
    }
    if _, err := ch.QueueDeclare(q.ReservationEventsQueue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        p.downUntil = p.now().Add(p.RetryAfter)
        return nil, fmt.Errorf("declare queue: %w", err)
    }
    p.conn, p.ch, p.downUntil = conn, ch, time.Time{}
    p.Log.Info("connected")
    return ch, nil
}

func (p *EventPublisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}

// Close releases the broker connection.
func (p *EventPublisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
    return nil
}
