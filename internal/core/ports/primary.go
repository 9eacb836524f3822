package ports

import (
	"context"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

// --- INPUTS (Command Pattern) ---

type CreatePostCmd struct {
	Title    string
	Content  string
	Type     string
	TeamID   string
	AuthorID string
	MediaIDs []string // optionnel
}

// --- PORTS PRIMAIRES (Driving) ---

type PostService interface {
	CreatePost(ctx context.Context, cmd CreatePostCmd) (*domain.Post, error)
	GetPost(ctx context.Context, postID string) (*domain.Post, error)
}

// TeamStatsService consomme les faits "post créé" (compteurs d'équipe).
type TeamStatsService interface {
	RecordPostCreated(ctx context.Context, fact domain.PostCreatedFact) error
}
