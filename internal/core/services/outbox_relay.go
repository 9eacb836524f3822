package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
)

const (
	DefaultRelayInterval  = 5 * time.Second
	DefaultRelayGrace     = 30 * time.Second
	DefaultRelayBatchSize = 100
)

// OutboxRelay republie les faits restés en attente (crash ou broker down après commit).
type OutboxRelay struct {
	outbox    ports.Outbox
	publisher ports.EventPublisher

	Interval  time.Duration
	Grace     time.Duration // laisse le temps au chemin nominal de publier
	BatchSize int
	MaxTries  uint
	now       func() time.Time
}

func NewOutboxRelay(outbox ports.Outbox, pub ports.EventPublisher) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		publisher: pub,
		Interval:  DefaultRelayInterval,
		Grace:     DefaultRelayGrace,
		BatchSize: DefaultRelayBatchSize,
		MaxTries:  5,
		now:       time.Now,
	}
}

// Run boucle jusqu'à l'annulation du contexte.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	slog.Info("🔁 Outbox relay started", "interval", r.Interval, "grace", r.Grace)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Outbox relay pass failed", "error", err)
			}
		}
	}
}

// Flush fait une passe et retourne le nombre de faits republiés.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	pending, err := r.outbox.Pending(ctx, r.now().Add(-r.Grace), r.BatchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, fact := range pending {
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, r.publisher.PublishPostCreated(ctx, fact)
		},
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxTries(r.MaxTries),
		)
		if err != nil {
			if ctx.Err() != nil {
				return published, ctx.Err()
			}
			// On passe au suivant, il sera repris à la prochaine passe.
			slog.Error("❌ Relay publish failed", "post_id", fact.PostID, "error", err)
			continue
		}

		if err := r.outbox.MarkPublished(ctx, fact.PostID); err != nil {
			slog.Warn("Failed to mark outbox entry as published", "post_id", fact.PostID, "error", err)
			continue
		}
		published++
	}

	if published > 0 {
		slog.Info("📢 Outbox relay republished facts", "count", published)
	}
	return published, nil
}
