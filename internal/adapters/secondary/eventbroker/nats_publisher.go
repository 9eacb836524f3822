package eventbroker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

type NatsPublisher struct {
	js jetstream.JetStream
}

// NewNatsPublisher s'assure que le Stream existe (Idempotent).
func NewNatsPublisher(ctx context.Context, nc *nats.Conn) (*NatsPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage, // Persistance disque
		Replicas: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsPublisher{js: js}, nil
}

// JetStream returns the underlying context, shared with the consumer side.
func (p *NatsPublisher) JetStream() jetstream.JetStream {
	return p.js
}

func (p *NatsPublisher) PublishPostCreated(ctx context.Context, fact domain.PostCreatedFact) error {
	data, err := EncodePostCreated(fact)
	if err != nil {
		return err
	}

	msg := &nats.Msg{
		Subject: SubjectPostCreated,
		Data:    data,
		Header:  nats.Header{},
	}
	// Propagation du TraceID vers les consommateurs
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	// Msg-Id = post ID : JetStream déduplique les republications du relay
	ack, err := p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(fact.PostID))
	if err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	slog.DebugContext(ctx, "📢 Published post.created",
		"post_id", fact.PostID, "seq", ack.Sequence, "duplicate", ack.Duplicate)
	return nil
}
