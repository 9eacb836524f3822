package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/minsuRob/sportcomm-sub010/internal/adapters/secondary/eventbroker"
	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
)

const ConsumerName = "team-stats"

type EventHandler struct {
	service ports.TeamStatsService
	timeout time.Duration
}

func NewEventHandler(service ports.TeamStatsService) *EventHandler {
	return &EventHandler{service: service, timeout: 10 * time.Second}
}

// Outcome indique ce qu'il faut faire du message côté broker.
type Outcome int

const (
	Ack  Outcome = iota // traité (ou doublon)
	Nak                 // erreur transitoire, redelivery
	Term                // message invalide, ne jamais rejouer
)

// HandlePostCreated traite un message post.created indépendamment du transport.
func (h *EventHandler) HandlePostCreated(header nats.Header, data []byte) Outcome {
	// Extraction du contexte de trace (lien avec le writer)
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(header))

	tracer := otel.Tracer("post-service")
	ctx, span := tracer.Start(ctx, "process_post_created", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	fact, err := eventbroker.DecodePostCreated(data)
	if err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "error", err)
		return Term
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.service.RecordPostCreated(ctx, fact); err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "❌ Team stats update failed", "post_id", fact.PostID, "error", err)
		return Nak
	}
	return Ack
}

// Subscribe attache un consumer durable JetStream (ack explicite = at-least-once).
func (h *EventHandler) Subscribe(ctx context.Context, js jetstream.JetStream) (jetstream.ConsumeContext, error) {
	cons, err := js.CreateOrUpdateConsumer(ctx, eventbroker.StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: eventbroker.SubjectPostCreated,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    10,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	return cons.Consume(func(msg jetstream.Msg) {
		var ackErr error
		switch h.HandlePostCreated(msg.Headers(), msg.Data()) {
		case Ack:
			ackErr = msg.Ack()
		case Nak:
			ackErr = msg.NakWithDelay(time.Second)
		case Term:
			ackErr = msg.Term()
		}
		if ackErr != nil {
			slog.Warn("Failed to ack message", "subject", msg.Subject(), "error", ackErr)
		}
	})
}
