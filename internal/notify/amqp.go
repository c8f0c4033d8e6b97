package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finpanel/internal/logger"
	"finpanel/internal/metrics"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
)

const publishTimeout = 5 * time.Second

// ErrCircuitOpen is returned while the broker circuit breaker is open.
var ErrCircuitOpen = errors.New("notify: broker circuit open")

// Publisher is the subset of *amqp091.Channel used for publishing.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPNotifier publishes messages to a durable direct exchange behind a
// circuit breaker, so a broker outage costs one fast failure per call.
type AMQPNotifier struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	publisher  Publisher
	exchange   string
	routingKey string
	cb         *gobreaker.CircuitBreaker
	metrics    metrics.Collector
}

// DialAMQP connects to url, declares exchange and queue, binds them and
// returns a notifier publishing with the queue name as routing key.
func DialAMQP(url, exchange, queue string, collector metrics.Collector) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(channel, exchange, queue); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	n := NewAMQPNotifier(channel, exchange, queue, collector)
	n.conn = conn
	n.channel = channel
	return n, nil
}

func declare(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// NewAMQPNotifier wraps an existing publisher.
func NewAMQPNotifier(publisher Publisher, exchange, routingKey string, collector metrics.Collector) *AMQPNotifier {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	n := &AMQPNotifier{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
		metrics:    collector,
	}

	n.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "amqp-notifier",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Named("notify").Warnw("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			n.metrics.RecordCircuitState(name, state)
		},
	})
	return n
}

// Notify publishes msg as a persistent JSON message.
func (n *AMQPNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = n.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		return nil, n.publisher.PublishWithContext(
			ctx,
			n.exchange,   // exchange
			n.routingKey, // routing key
			false,        // mandatory
			false,        // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Kind),
				Body:         body,
			},
		)
	})
	n.metrics.RecordNotification(string(msg.Kind), err == nil)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ErrCircuitOpen
		}
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close closes the channel and connection opened by DialAMQP.
func (n *AMQPNotifier) Close() error {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

var _ Notifier = (*AMQPNotifier)(nil)
