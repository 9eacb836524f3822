package ports

import (
	"context"
	"time"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

// --- AUTORISATION ---

// MembershipIndex est en lecture seule et n'est jamais mis en cache :
// chaque appel reflète le dernier état commité.
type MembershipIndex interface {
	HasAccess(ctx context.Context, userID, teamID string) (bool, error)
}

// --- PERSISTANCE (DB) ---

// MediaClaimStore gère l'attachement exclusif des médias uploadés.
type MediaClaimStore interface {
	Find(ctx context.Context, mediaIDs []string) ([]domain.Media, error)

	// ClaimAll est tout-ou-rien. Retourne *domain.MediaNotFoundError ou
	// *domain.MediaAlreadyUsedError sans rien modifier.
	// Doit tourner dans la même transaction que PostRepository.Save.
	ClaimAll(ctx context.Context, mediaIDs []string, postID string) error
}

type PostRepository interface {
	Save(ctx context.Context, post *domain.Post) (*domain.Post, error)
	FindByID(ctx context.Context, postID string) (*domain.Post, error)
	FindAuthorWithMemberships(ctx context.Context, authorID string) (*domain.Author, error)
}

// Outbox garde une trace durable des faits à publier (Transactional Outbox).
type Outbox interface {
	Enqueue(ctx context.Context, fact domain.PostCreatedFact) error
	Pending(ctx context.Context, olderThan time.Time, limit int) ([]domain.PostCreatedFact, error)
	MarkPublished(ctx context.Context, postID string) error
}

// TxStores regroupe les stores liés à UNE transaction.
type TxStores struct {
	Media  MediaClaimStore
	Posts  PostRepository
	Outbox Outbox
}

// Transactor exprime la frontière transactionnelle explicitement :
// tout ce que fn écrit est commité ensemble, ou rien ne l'est.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx TxStores) error) error
}

// --- MESSAGERIE (BROKER) ---

type EventPublisher interface {
	PublishPostCreated(ctx context.Context, fact domain.PostCreatedFact) error
}

// --- CONSOMMATEURS EN AVAL ---

// TeamCounter applique chaque fait au plus une fois (idempotent par post ID).
type TeamCounter interface {
	IncrementPostCount(ctx context.Context, fact domain.PostCreatedFact) (applied bool, err error)
}
