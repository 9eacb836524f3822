package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
)

const defaultPublishTimeout = 10 * time.Second

var tracer = otel.Tracer("post-service")

// PostService implémente ports.PostService.
type PostService struct {
	posts     ports.PostRepository
	members   ports.MembershipIndex
	tx        ports.Transactor
	outbox    ports.Outbox
	publisher ports.EventPublisher

	publishTimeout time.Duration
	inflight       sync.WaitGroup
}

func NewPostService(
	posts ports.PostRepository,
	members ports.MembershipIndex,
	tx ports.Transactor,
	outbox ports.Outbox,
	pub ports.EventPublisher,
) *PostService {
	return &PostService{
		posts:          posts,
		members:        members,
		tx:             tx,
		outbox:         outbox,
		publisher:      pub,
		publishTimeout: defaultPublishTimeout,
	}
}

// CreatePost : Validating -> Authorizing -> ClaimingMedia -> Persisting -> Committed -> Publishing -> Done.
// Une fois Committed atteint, plus rien n'annule le post.
func (s *PostService) CreatePost(ctx context.Context, cmd ports.CreatePostCmd) (*domain.Post, error) {
	ctx, span := tracer.Start(ctx, "CreatePost", trace.WithAttributes(
		attribute.String("author_id", cmd.AuthorID),
		attribute.String("team_id", cmd.TeamID),
		attribute.Int("media_count", len(cmd.MediaIDs)),
	))
	defer span.End()

	state := domain.StateValidating
	setState := func(next domain.CreationState) {
		state = next
		span.AddEvent(string(next))
	}
	fail := func(err error) (*domain.Post, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("failed_at", string(state)))
		setState(domain.StateFailed)
		slog.WarnContext(ctx, "Post creation failed",
			"author_id", cmd.AuthorID, "team_id", cmd.TeamID, "error", err)
		return nil, err
	}

	// 1. Résolution de l'auteur
	author, err := s.posts.FindAuthorWithMemberships(ctx, cmd.AuthorID)
	if err != nil {
		if errors.Is(err, domain.ErrAuthorNotFound) {
			return fail(err)
		}
		return fail(domain.NewPersistenceError("find author", err))
	}

	// 2. Autorisation (jamais en cache)
	setState(domain.StateAuthorizing)
	ok, err := s.members.HasAccess(ctx, author.ID, cmd.TeamID)
	if err != nil {
		return fail(domain.NewPersistenceError("check membership", err))
	}
	if !ok {
		return fail(domain.ErrUnauthorized)
	}

	// 3. Domaine : validation du contenu via NewPost
	setState(domain.StateValidating)
	post, err := domain.NewPost(cmd.Title, cmd.Content, cmd.Type, cmd.TeamID, author.ID, cmd.MediaIDs)
	if err != nil {
		return fail(err)
	}

	// 4-6. Claim des médias + insert du post + outbox : une seule transaction
	var saved *domain.Post
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, tx ports.TxStores) error {
		if post.HasMedia() {
			setState(domain.StateClaimingMedia)
			if err := tx.Media.ClaimAll(ctx, post.MediaIDs, post.ID); err != nil {
				return err
			}
		}

		setState(domain.StatePersisting)
		var err error
		saved, err = tx.Posts.Save(ctx, post)
		if err != nil {
			return err
		}
		return tx.Outbox.Enqueue(ctx, domain.NewPostCreatedFact(saved))
	})
	if err != nil {
		if domain.IsCallerError(err) || errors.Is(err, domain.ErrPersistence) {
			return fail(err)
		}
		return fail(domain.NewPersistenceError("create post", err))
	}

	setState(domain.StateCommitted)
	span.SetAttributes(attribute.String("post_id", saved.ID))
	slog.InfoContext(ctx, "✅ Post created",
		"post_id", saved.ID, "team_id", saved.TeamID, "media_count", len(saved.MediaIDs))

	// 7. Publication après commit, sans bloquer l'appelant.
	// Si elle échoue, le relay de l'outbox reprend le fait.
	s.publishAsync(ctx, domain.NewPostCreatedFact(saved))

	return saved, nil
}

func (s *PostService) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	if postID == "" {
		return nil, domain.ErrPostNotFound
	}
	return s.posts.FindByID(ctx, postID)
}

// Wait bloque jusqu'à la fin des publications en cours (shutdown, tests).
func (s *PostService) Wait() {
	s.inflight.Wait()
}

func (s *PostService) publishAsync(ctx context.Context, fact domain.PostCreatedFact) {
	// Le contexte de la requête peut être annulé dès la réponse envoyée :
	// on garde la trace mais pas l'annulation.
	pubCtx := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(pubCtx, s.publishTimeout)
		defer cancel()

		ctx, span := tracer.Start(ctx, "PublishPostCreated", trace.WithAttributes(
			attribute.String("post_id", fact.PostID),
			attribute.String("state", string(domain.StatePublishing)),
		))
		defer span.End()

		if err := s.publish(ctx, fact); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.ErrorContext(ctx, "❌ Publish failed, outbox relay will retry",
				"post_id", fact.PostID, "error", err)
			return
		}
		span.AddEvent(string(domain.StateDone))
	}()
}

func (s *PostService) publish(ctx context.Context, fact domain.PostCreatedFact) error {
	if err := s.publisher.PublishPostCreated(ctx, fact); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := s.outbox.MarkPublished(ctx, fact.PostID); err != nil {
		// Le fait est parti : au pire il sera republié (at-least-once).
		slog.WarnContext(ctx, "Failed to mark outbox entry as published", "post_id", fact.PostID, "error", err)
	}
	return nil
}
