package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"comanda/internal/config"
	"comanda/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

func exchangeFor(table string) string {
	return table + "_feed"
}

// Publisher fans committed writes out to every subscribed surface. One durable
// fanout exchange per watched table.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	mylog logger.Logger
	mu    sync.Mutex
}

func NewPublisher(cfg *config.RabbitMQ, mylog logger.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, table := range []string{TableOrders, TableWaiterCalls, TableReservations} {
		err = ch.ExchangeDeclare(
			exchangeFor(table), // name
			"fanout",           // type
			true,               // durable
			false,              // auto-deleted
			false,              // internal
			false,              // no-wait
			nil,                // arguments
		)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", exchangeFor(table), err)
		}
	}

	return &Publisher{conn: conn, ch: ch, mylog: mylog}, nil
}

// PublishChange pushes one row-level change onto the table's fanout exchange.
// Delivery is best-effort at-least-once; subscribers reconcile gaps via resync.
func (p *Publisher) PublishChange(ctx context.Context, table string, ev Event) error {
	ev.Table = table

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		exchangeFor(table), // exchange
		"",                 // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", exchangeFor(table), err)
	}

	p.mylog.Action("feed_published").Debug("Change event published", "table", table, "op", string(ev.Op))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
