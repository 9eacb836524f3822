package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

type MediaStore struct {
	db querier
}

func NewMediaStore(db *pgxpool.Pool) *MediaStore {
	return &MediaStore{db: db}
}

func (s *MediaStore) Find(ctx context.Context, mediaIDs []string) ([]domain.Media, error) {
	return s.find(ctx, mediaIDs, false)
}

// ClaimAll : lecture verrouillante (FOR UPDATE) puis update conditionnel.
// Deux transactions concurrentes sur le même média : la seconde attend le
// commit de la première puis voit post_id renseigné.
func (s *MediaStore) ClaimAll(ctx context.Context, mediaIDs []string, postID string) error {
	if len(mediaIDs) == 0 {
		return nil
	}

	found, err := s.find(ctx, mediaIDs, true)
	if err != nil {
		return err
	}

	byID := make(map[string]domain.Media, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}

	var missing, used []string
	for _, id := range mediaIDs {
		m, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case m.IsAttached():
			used = append(used, id)
		}
	}
	if len(missing) > 0 {
		return &domain.MediaNotFoundError{IDs: missing}
	}
	if len(used) > 0 {
		return &domain.MediaAlreadyUsedError{IDs: used}
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE media SET post_id = $1 WHERE id = ANY($2) AND post_id IS NULL`,
		postID, mediaIDs,
	)
	if err != nil {
		return translatePgError(fmt.Errorf("db: claim media: %w", err))
	}
	// Impossible sous verrou, mais on ne laisse jamais passer un claim partiel.
	if int(tag.RowsAffected()) != len(mediaIDs) {
		return &domain.MediaAlreadyUsedError{IDs: mediaIDs}
	}
	return nil
}

func (s *MediaStore) find(ctx context.Context, mediaIDs []string, lock bool) ([]domain.Media, error) {
	// ORDER BY id : ordre de verrouillage déterministe, évite les deadlocks.
	q := `SELECT id, post_id FROM media WHERE id = ANY($1) ORDER BY id`
	if lock {
		q += ` FOR UPDATE`
	}

	rows, err := s.db.Query(ctx, q, mediaIDs)
	if err != nil {
		return nil, translatePgError(fmt.Errorf("db: find media: %w", err))
	}
	defer rows.Close()

	var out []domain.Media
	for rows.Next() {
		var m domain.Media
		if err := rows.Scan(&m.ID, &m.PostID); err != nil {
			return nil, fmt.Errorf("db: scan media: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePgError(fmt.Errorf("db: find media: %w", err))
	}
	return out, nil
}
