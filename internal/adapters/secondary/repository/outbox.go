package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

// DTO interne pour le JSONB, le domaine reste sans tags.
type factDTO struct {
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	TeamID    string    `json:"team_id"`
	Type      string    `json:"type"`
	Title     *string   `json:"title,omitempty"`
	Content   string    `json:"content"`
	MediaIDs  []string  `json:"media_ids"`
	CreatedAt time.Time `json:"created_at"`
}

type Outbox struct {
	db querier
}

func NewOutbox(db *pgxpool.Pool) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) Enqueue(ctx context.Context, fact domain.PostCreatedFact) error {
	payload, err := json.Marshal(factDTO{
		PostID:    fact.PostID,
		AuthorID:  fact.AuthorID,
		TeamID:    fact.TeamID,
		Type:      string(fact.Type),
		Title:     fact.Title,
		Content:   fact.Content,
		MediaIDs:  fact.MediaIDs,
		CreatedAt: fact.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal fact: %w", err)
	}

	_, err = o.db.Exec(ctx,
		`INSERT INTO post_outbox (post_id, payload) VALUES ($1, $2) ON CONFLICT (post_id) DO NOTHING`,
		fact.PostID, payload,
	)
	if err != nil {
		return translatePgError(fmt.Errorf("db: enqueue outbox: %w", err))
	}
	return nil
}

func (o *Outbox) Pending(ctx context.Context, olderThan time.Time, limit int) ([]domain.PostCreatedFact, error) {
	rows, err := o.db.Query(ctx, `
		SELECT payload FROM post_outbox
		WHERE published_at IS NULL AND created_at <= $1
		ORDER BY created_at
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("db: pending outbox: %w", err)
	}
	defer rows.Close()

	var facts []domain.PostCreatedFact
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("db: scan outbox: %w", err)
		}
		var d factDTO
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fact: %w", err)
		}
		facts = append(facts, domain.PostCreatedFact{
			PostID:    d.PostID,
			AuthorID:  d.AuthorID,
			TeamID:    d.TeamID,
			Type:      domain.PostType(d.Type),
			Title:     d.Title,
			Content:   d.Content,
			MediaIDs:  d.MediaIDs,
			CreatedAt: d.CreatedAt,
		})
	}
	return facts, rows.Err()
}

func (o *Outbox) MarkPublished(ctx context.Context, postID string) error {
	_, err := o.db.Exec(ctx,
		`UPDATE post_outbox SET published_at = now() WHERE post_id = $1 AND published_at IS NULL`,
		postID,
	)
	if err != nil {
		return fmt.Errorf("db: mark published: %w", err)
	}
	return nil
}
