// Package eventsvc publishes domain events to RabbitMQ.
package eventsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/NoheilaRamdani/sae401/core"
)

const publishTimeout = 5 * time.Second

// RabbitMQPublisher sends every event to a durable direct exchange, routed by event type.
type RabbitMQPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   core.Logger
}

var _ core.EventPublisher = (*RabbitMQPublisher)(nil)

func NewRabbitMQPublisher(conf *core.Config, logger core.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp091.Dial(conf.RabbitMQ.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to RabbitMQ")
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}

	err = channel.ExchangeDeclare(
		conf.RabbitMQ.Exchange, // name
		"direct",               // type
		true,                   // durable
		false,                  // auto-deleted
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}

	logger.Info("connected to RabbitMQ", map[string]interface{}{"exchange": conf.RabbitMQ.Exchange})
	return &RabbitMQPublisher{conn: conn, channel: channel, exchange: conf.RabbitMQ.Exchange, logger: logger}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, evt core.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		publishCtx,
		p.exchange, // exchange
		evt.Type,   // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    evt.OccurredAt,
		},
	)
	if err != nil {
		return errors.Wrap(err, "publishing event")
	}
	p.logger.Debug("event published", map[string]interface{}{"type": evt.Type})
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Error("closing RabbitMQ channel", err)
	}
	return errors.Wrap(p.conn.Close(), "closing RabbitMQ connection")
}
