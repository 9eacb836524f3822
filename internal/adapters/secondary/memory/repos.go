package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

// PostRepo : lectures hors transaction. Save écrit directement (auto-commit).
type PostRepo struct {
	store *Store
}

func NewPostRepo(s *Store) *PostRepo {
	return &PostRepo{store: s}
}

func (r *PostRepo) Save(_ context.Context, post *domain.Post) (*domain.Post, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.posts[post.ID]; exists {
		return nil, fmt.Errorf("post %s already exists", post.ID)
	}
	r.store.posts[post.ID] = clonePost(post)
	return clonePost(post), nil
}

func (r *PostRepo) FindByID(_ context.Context, postID string) (*domain.Post, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.posts[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return clonePost(p), nil
}

func (r *PostRepo) FindAuthorWithMemberships(_ context.Context, authorID string) (*domain.Author, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.author(authorID)
}

type MembershipIndex struct {
	store *Store
}

func NewMembershipIndex(s *Store) *MembershipIndex {
	return &MembershipIndex{store: s}
}

func (m *MembershipIndex) HasAccess(_ context.Context, userID, teamID string) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	_, ok := m.store.memberships[userID][teamID]
	return ok, nil
}

type Outbox struct {
	store *Store
}

func NewOutbox(s *Store) *Outbox {
	return &Outbox{store: s}
}

func (o *Outbox) Enqueue(_ context.Context, fact domain.PostCreatedFact) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	o.store.outbox[fact.PostID] = &outboxEntry{fact: fact, enqueuedAt: o.store.now()}
	return nil
}

func (o *Outbox) Pending(_ context.Context, olderThan time.Time, limit int) ([]domain.PostCreatedFact, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	return o.store.pending(olderThan, limit), nil
}

func (o *Outbox) MarkPublished(_ context.Context, postID string) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	return o.store.markPublished(postID)
}

// TeamCounter : équivalent mémoire du compteur Redis.
type TeamCounter struct {
	mu      sync.Mutex
	counted map[string]struct{}
	counts  map[string]int
}

func NewTeamCounter() *TeamCounter {
	return &TeamCounter{
		counted: make(map[string]struct{}),
		counts:  make(map[string]int),
	}
}

func (c *TeamCounter) IncrementPostCount(_ context.Context, fact domain.PostCreatedFact) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.counted[fact.PostID]; done {
		return false, nil
	}
	c.counted[fact.PostID] = struct{}{}
	c.counts[fact.TeamID]++
	return true, nil
}

func (c *TeamCounter) PostCount(teamID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[teamID]
}
