// Package amqpdlq publishes dead-letter events to an AMQP exchange.
package amqpdlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/core"
)

// MessageType is set on every published message.
const MessageType = "notification.dead_letter"

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a broker connection and returns a ready channel plus a closer
// for the underlying connection.
type dialFunc func(cfg config.DeadLetterConfig) (channel, func() error, error)

// Options configures a Publisher.
type Options struct {
	Config config.DeadLetterConfig
	Logger *slog.Logger

	dial dialFunc
}

// Publisher sends core.DeadLetterEvent messages to a topic exchange.
// The connection is opened lazily and re-dialled after a publish failure.
type Publisher struct {
	cfg    config.DeadLetterConfig
	logger *slog.Logger
	dial   dialFunc

	mu        sync.Mutex
	ch        channel
	closeConn func() error
}

var _ core.DeadLetterPublisher = (*Publisher)(nil)

// New constructs a Publisher. No connection is made until the first publish.
func New(opts Options) (*Publisher, error) {
	if opts.Config.URL == "" {
		return nil, errors.New("amqp url is required")
	}
	if opts.Config.Exchange == "" {
		return nil, errors.New("amqp exchange is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dial := opts.dial
	if dial == nil {
		dial = dialExchange
	}
	return &Publisher{
		cfg:    opts.Config,
		logger: logger.With("component", "amqp_dead_letter"),
		dial:   dial,
	}, nil
}

// PublishDeadLetter sends ev as a persistent JSON message routed by the configured key.
func (p *Publisher) PublishDeadLetter(ctx context.Context, ev core.DeadLetterEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    ev.ArchivedAt,
		Type:         MessageType,
		Headers: amqp.Table{
			"tenant_id":  ev.TenantID,
			"channel":    ev.Channel,
			"event_type": ev.EventType,
		},
		Body: body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	if err := ch.Publish(p.cfg.Exchange, p.cfg.RoutingKey, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("publish dead letter: %w", err)
	}
	p.logger.DebugContext(ctx, "dead letter published", "job_id", ev.JobID, "message_id", msg.MessageId)
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resetLocked()
}

func (p *Publisher) channelLocked() (channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, closeConn, err := p.dial(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	p.ch = ch
	p.closeConn = closeConn
	return ch, nil
}

func (p *Publisher) resetLocked() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if p.closeConn != nil {
		if err := p.closeConn(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	p.ch = nil
	p.closeConn = nil
	return errors.Join(errs...)
}

func dialExchange(cfg config.DeadLetterConfig) (channel, func() error, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Dial: amqp.DefaultDial(timeout)})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, errors.Join(err, conn.Close())
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("declare exchange: %w", err), conn.Close())
	}
	return ch, conn.Close, nil
}
