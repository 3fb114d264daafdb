// Package queue publishes audit events to RabbitMQ for downstream consumers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// DefaultBuffer is how many events may wait for the broker before Record
// starts dropping them.
const DefaultBuffer = 256

var (
	// ErrQueueFull is returned when the buffer is full and the event was dropped.
	ErrQueueFull = errors.New("audit queue full")
	// ErrClosed is returned by Record after Close.
	ErrClosed = errors.New("audit publisher closed")
)

// Publisher sends audit events to a durable queue over the default exchange.
// Record only enqueues; a single goroutine owns the connection, dials
// lazily with a bounded timeout and reconnects after a failure.
type Publisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	log         zerolog.Logger

	events chan model.AuditEvent
	stop   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
	started   bool

	// Owned by the run goroutine.
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher creates a Publisher and starts its delivery goroutine. Every
// connection attempt and publish is bounded by timeout.
func NewPublisher(url, queue string, timeout time.Duration, log zerolog.Logger) *Publisher {
	p := newPublisher(url, queue, timeout, DefaultBuffer, log)
	p.start()
	return p
}

func newPublisher(url, queue string, timeout time.Duration, buffer int, log zerolog.Logger) *Publisher {
	return &Publisher{
		url:         url,
		queue:       queue,
		dialTimeout: timeout,
		log:         log.With().Str("component", "audit_publisher").Logger(),
		events:      make(chan model.AuditEvent, buffer),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (p *Publisher) start() {
	p.started = true
	go p.run()
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string {
	return "amqp"
}

// Record queues ev for publishing and never waits for the broker.
func (p *Publisher) Record(_ context.Context, ev model.AuditEvent) error {
	select {
	case <-p.stop:
		return ErrClosed
	default:
	}

	select {
	case p.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the delivery goroutine after it flushes what is already
// queued. The flush gives up at the first failed delivery.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() { close(p.stop) })
	if p.started {
		<-p.done
	}
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.reset()

	for {
		select {
		case <-p.stop:
			p.drain()
			return
		default:
		}

		select {
		case ev := <-p.events:
			p.publish(ev)
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case ev := <-p.events:
			if !p.publish(ev) {
				p.log.Warn().Int("dropped", len(p.events)+1).Msg("Dropping queued audit events on shutdown")
				return
			}
		default:
			return
		}
	}
}

// publish delivers one event as a persistent JSON message.
func (p *Publisher) publish(ev model.AuditEvent) bool {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to marshal audit event")
		return true
	}

	ch, err := p.channel()
	if err != nil {
		p.log.Warn().Err(err).Str("action", string(ev.Action)).Msg("Audit event not published")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.dialTimeout)
	defer cancel()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID.String(),
		Type:         string(ev.Action),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		p.log.Warn().Err(err).Str("action", string(ev.Action)).Msg("Audit event not published")
		return false
	}
	return true
}

// channel returns an open channel, dialing and declaring the queue if needed.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	p.log.Info().Str("queue", p.queue).Msg("Audit publisher connected")
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}
