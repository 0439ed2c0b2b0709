package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrBrokerUnavailable is returned without contacting the broker while
// another caller is dialing or a recent dial has failed.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

const (
	defaultDialTimeout = 3 * time.Second
	redialBackoff      = 5 * time.Second
)

// Publisher sends BookingEvents to a durable topic exchange, using the
// event type as routing key. The connection is opened lazily and
// re-opened after the broker drops it. Its mutex is never held across
// network I/O.
type Publisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration
	retryAfter  time.Duration

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	dialing  bool
	nextDial time.Time
}

// NewPublisher returns a publisher for exchange on the broker at url. No
// connection is made until the first Publish. dialTimeout bounds both
// the TCP connect and the AMQP handshake.
func NewPublisher(url, exchange string, dialTimeout time.Duration) *Publisher {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return &Publisher{url: url, exchange: exchange, dialTimeout: dialTimeout, retryAfter: redialBackoff}
}

// channel returns an open channel. One caller dials at a time; the rest
// get ErrBrokerUnavailable until it finishes, and so does everyone for
// retryAfter after a failed dial.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing || time.Now().Before(p.nextDial) {
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}
	oldConn, oldCh := p.detachLocked()
	p.dialing = true
	p.mu.Unlock()

	closeQuietly(oldConn, oldCh)

	conn, ch, err := p.dial()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.nextDial = time.Now().Add(p.retryAfter)
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(p.dialTimeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(
		name,    // name
		"topic", // kind
		true,    // durable
		false,   // autoDelete
		false,   // internal
		false,   // noWait
		nil,     // args
	); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

// Publish sends ev as a persistent JSON message. Errors are logged and
// returned so the caller can ignore them without interrupting the request.
func (p *Publisher) Publish(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	ch, err := p.channel()
	if err != nil {
		if !errors.Is(err, ErrBrokerUnavailable) {
			log.Printf("rabbitmq: %v", err)
		}
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish %s for booking %d failed: %v", ev.Type, ev.BookingID, err)
		p.mu.Lock()
		var conn *amqp.Connection
		if p.ch == ch {
			conn, _ = p.detachLocked()
		}
		p.mu.Unlock()
		closeQuietly(conn, ch)
		return err
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	conn, ch := p.detachLocked()
	p.mu.Unlock()
	closeQuietly(conn, ch)
	return nil
}

func (p *Publisher) detachLocked() (*amqp.Connection, *amqp.Channel) {
	conn, ch := p.conn, p.ch
	p.conn, p.ch = nil, nil
	return conn, ch
}

func closeQuietly(conn *amqp.Connection, ch *amqp.Channel) {
	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}
