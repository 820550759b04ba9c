package rabbitmq

import (
	"context"
	amqp "github.com/rabbitmq/amqp091-go"
	"worker-render/config"
)

// Publisher pushes render dispatch messages onto the render exchange.
type Publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) *Publisher {
	return &Publisher{conn: conn, cfg: cfg}
}

func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	exchangeName := p.cfg.ExchangeName
	if exchangeName == "" {
		exchangeName = defaultExchange
	}
	if err := ch.ExchangeDeclare(exchangeName, p.cfg.Kind, true, false, false, false, nil); err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
