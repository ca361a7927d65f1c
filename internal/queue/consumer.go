package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// LogFileName is the file, under the consumer's log directory, that
// receives one line per reservation event.
const LogFileName = "reservations.log"

// Consumer reads reservation events from RabbitMQ and appends them to
// <LogDir>/reservations.log.
type Consumer struct {
    URL    string
    LogDir string
    Log    logrus.FieldLogger
}

// NewConsumer returns a Consumer for the broker at url.
func NewConsumer(url, logDir string, log logrus.FieldLogger) *Consumer {
    if log == nil {
        log = logrus.StandardLogger()
    }
    return &Consumer{URL: url, LogDir: logDir, Log: log.WithField("component", "reservation-consumer")}
}

// Run connects to the broker, declares the durable queue and consumes it
// until ctx is cancelled.  Lost connections are re-dialled with exponential
// backoff capped at 30s.  A message that cannot be handled is rejected
// without requeue so a poison message cannot loop.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.WithError(err).Warnf("dial broker failed; retrying in %s", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.WithError(err).Warn("consume loop ended; reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.WithError(err).Warn("set QoS failed")
    }
    if _, err := ch.QueueDeclare(ReservationEventsQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(ReservationEventsQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(d.Body); err != nil {
                c.Log.WithError(err).Error("handle message failed")
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one event body and appends its log line.
func (c *Consumer) Handle(body []byte) error {
    var ev ReservationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.ReservationID == "" || ev.Action == "" {
        return errors.New("event missing reservation_id or action")
    }
    if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.LogDir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single human-friendly log line.
func FormatLine(ev ReservationEvent) string {
    line := fmt.Sprintf("[%s] Reservation %s | reservation_id=%s | date=%s | slot=%s | owner=%q | changed_by=%s",
        ev.ChangedAt, ev.Action, ev.ReservationID, ev.Date, ev.Slot, ev.OwnerDisplayName, ev.ChangedBy)
    if ev.PrevDate != "" {
        line += fmt.Sprintf(" | from=%s_%s", ev.PrevDate, ev.PrevSlot)
    }
    if ev.Status != "" {
        line += " | status=" + ev.Status
    }
    return line + "\n"
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
