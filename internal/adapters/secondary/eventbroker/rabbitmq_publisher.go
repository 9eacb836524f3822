package eventbroker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

const ExchangeName = "posts"

// RabbitPublisher : alternative à JetStream (BROKER=rabbitmq).
// Publisher confirms activés : une erreur est renvoyée si le broker n'a pas acké.
type RabbitPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitPublisher(url string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error establishing connection with rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error opening channel for rabbitmq: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &RabbitPublisher{conn: conn, ch: ch}, nil
}

func (p *RabbitPublisher) PublishPostCreated(ctx context.Context, fact domain.PostCreatedFact) error {
	data, err := EncodePostCreated(fact)
	if err != nil {
		return err
	}

	headers := amqp.Table{}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers[k] = v
	}

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, ExchangeName, SubjectPostCreated, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fact.PostID,
		Timestamp:    fact.CreatedAt,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm: %w", err)
	}
	if !ok {
		return fmt.Errorf("rabbitmq nacked post %s", fact.PostID)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
