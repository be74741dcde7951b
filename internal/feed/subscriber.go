package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"comanda/internal/config"
	"comanda/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errConsumeClosed = errors.New("delivery channel closed")

// Subscriber consumes one watched table's change feed and delivers typed
// events on Events(). On any transport failure it resubscribes after a fixed
// backoff; while down, Connected() reports false and the owning surface keeps
// serving its last-known projection.
type Subscriber struct {
	cfg       *config.RabbitMQ
	table     string
	backoff   time.Duration
	mylog     logger.Logger
	events    chan Event
	connected atomic.Bool
}

func NewSubscriber(cfg *config.RabbitMQ, table string, backoff time.Duration, mylog logger.Logger) *Subscriber {
	return &Subscriber{
		cfg:     cfg,
		table:   table,
		backoff: backoff,
		mylog:   mylog.With("table", table),
		events:  make(chan Event, 64),
	}
}

// Events is the stream of decoded change events. Closed when Run returns.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Connected reports whether the subscription is currently established. This
// drives the passive "disconnected" indicator; a down feed is never a
// blocking error.
func (s *Subscriber) Connected() bool {
	return s.connected.Load()
}

// Run establishes the subscription and keeps it alive until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.events)
	mylog := s.mylog.Action("feed_subscribe")

	for {
		err := s.consume(ctx)
		s.connected.Store(false)

		if ctx.Err() != nil {
			mylog.Info("Subscription stopped")
			return nil
		}

		mylog.Warn("Feed connection lost, resubscribing", "backoff", s.backoff.String(), "reason", err.Error())
		select {
		case <-ctx.Done():
			mylog.Info("Subscription stopped")
			return nil
		case <-time.After(s.backoff):
		}
	}
}

// consume binds a server-named exclusive queue to the table's fanout exchange
// and pumps deliveries until the transport fails or ctx is done.
func (s *Subscriber) consume(ctx context.Context) error {
	conn, err := amqp.Dial(s.cfg.URL())
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		exchangeFor(s.table), // name
		"fanout",             // type
		true,                 // durable
		false,                // auto-deleted
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		"",    // name (let server generate)
		false, // durable
		false, // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	if err := ch.QueueBind(q.Name, "", exchangeFor(s.table), false, nil); err != nil {
		return err
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return err
	}

	s.connected.Store(true)
	s.mylog.Action("feed_subscribed").Info("Subscribed to change feed", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return errConsumeClosed
			}
			var ev Event
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				s.mylog.Action("feed_decode_failed").Error("Dropping undecodable event", err)
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
