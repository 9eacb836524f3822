package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

// querier est satisfait par *pgxpool.Pool et pgx.Tx :
// les mêmes repos servent dans et hors transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepo struct {
	db querier
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const selectPost = `
	SELECT p.id, p.title, p.content, p.type, p.team_id, p.author_id,
	       p.like_count, p.comment_count, p.view_count, p.created_at, p.updated_at,
	       COALESCE(ARRAY(SELECT pm.media_id FROM post_media pm WHERE pm.post_id = p.id ORDER BY pm.position), '{}')
	FROM posts p
`

// Save insère le post puis ses médias (ordre conservé via position).
func (r *PostgresRepo) Save(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	q := `
		INSERT INTO posts (id, title, content, type, team_id, author_id,
		                   like_count, comment_count, view_count, created_at, updated_at)
		VALUES (@id, @title, @content, @type, @team_id, @author_id, 0, 0, 0, @created_at, @updated_at)
		RETURNING created_at, updated_at
	`
	args := pgx.NamedArgs{
		"id":         post.ID,
		"title":      post.Title,
		"content":    post.Content,
		"type":       string(post.Type),
		"team_id":    post.TeamID,
		"author_id":  post.AuthorID,
		"created_at": post.CreatedAt,
		"updated_at": post.UpdatedAt,
	}

	saved := *post
	saved.Counters = domain.Counters{}
	saved.MediaIDs = append([]string(nil), post.MediaIDs...)
	if err := r.db.QueryRow(ctx, q, args).Scan(&saved.CreatedAt, &saved.UpdatedAt); err != nil {
		return nil, r.handleError(fmt.Errorf("db: insert post: %w", err))
	}

	if post.HasMedia() {
		_, err := r.db.Exec(ctx, `
			INSERT INTO post_media (post_id, media_id, position)
			SELECT $1, m.id, m.ord - 1
			FROM unnest($2::text[]) WITH ORDINALITY AS m(id, ord)
		`, post.ID, post.MediaIDs)
		if err != nil {
			return nil, r.handleError(fmt.Errorf("db: insert post media: %w", err))
		}
	}

	return &saved, nil
}

func (r *PostgresRepo) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	row := r.db.QueryRow(ctx, selectPost+` WHERE p.id = $1`, postID)
	return r.scanPost(row)
}

func (r *PostgresRepo) FindAuthorWithMemberships(ctx context.Context, authorID string) (*domain.Author, error) {
	q := `
		SELECT u.id,
		       COALESCE(array_agg(m.team_id ORDER BY m.priority, m.team_id)
		                FILTER (WHERE m.team_id IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN team_memberships m ON m.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id
	`
	var a domain.Author
	err := r.db.QueryRow(ctx, q, authorID).Scan(&a.ID, &a.TeamIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuthorNotFound
		}
		return nil, fmt.Errorf("db: find author: %w", err)
	}
	return &a, nil
}

// --- HELPERS ---

func (r *PostgresRepo) scanPost(row pgx.Row) (*domain.Post, error) {
	var (
		p        domain.Post
		postType string
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Content, &postType, &p.TeamID, &p.AuthorID,
		&p.Counters.LikeCount, &p.Counters.CommentCount, &p.Counters.ViewCount,
		&p.CreatedAt, &p.UpdatedAt, &p.MediaIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("db: scan post: %w", err)
	}
	p.Type = domain.PostType(postType)
	return &p, nil
}

// handleError traduit les codes PostgreSQL en erreurs du domaine.
func (r *PostgresRepo) handleError(err error) error {
	return translatePgError(err)
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23503": // foreign_key_violation
		if pgErr.ConstraintName == "posts_team_id_fkey" {
			return domain.NewValidationError("team_id", "unknown team")
		}
	case "55P03", "57014", "40001", "40P01":
		// lock_not_available, query_canceled (timeouts), serialization, deadlock
		return domain.NewPersistenceError(pgErr.Code, err)
	}
	return err
}
