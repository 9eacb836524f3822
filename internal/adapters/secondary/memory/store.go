// Package memory implémente tous les ports secondaires en mémoire.
// Un mutex global sert de transaction (sérialisable) : utilisé par les tests
// et par STORAGE_BACKEND=memory en local.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
)

type outboxEntry struct {
	fact        domain.PostCreatedFact
	enqueuedAt  time.Time
	publishedAt *time.Time
}

type Store struct {
	mu sync.Mutex

	users       map[string]struct{}
	memberships map[string]map[string]int // user -> team -> priority
	media       map[string]*string        // media -> post (nil = libre)
	posts       map[string]*domain.Post
	outbox      map[string]*outboxEntry

	commitErr error // erreur injectée au prochain commit
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:       make(map[string]struct{}),
		memberships: make(map[string]map[string]int),
		media:       make(map[string]*string),
		posts:       make(map[string]*domain.Post),
		outbox:      make(map[string]*outboxEntry),
		now:         time.Now,
	}
}

// --- SEED ---

func (s *Store) AddUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = struct{}{}
}

func (s *Store) AddMembership(m domain.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[m.UserID] = struct{}{}
	if s.memberships[m.UserID] == nil {
		s.memberships[m.UserID] = make(map[string]int)
	}
	s.memberships[m.UserID][m.TeamID] = m.Priority
}

func (s *Store) RemoveMembership(userID, teamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memberships[userID], teamID)
}

// AddMedia enregistre des médias uploadés, non rattachés.
func (s *Store) AddMedia(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.media[id] = nil
	}
}

// FailNextCommit fait échouer le prochain commit (simulation de panne DB).
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// --- INSPECTION ---

func (s *Store) MediaOwner(id string) (postID string, attached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := s.media[id]
	if owner == nil {
		return "", false
	}
	return *owner, true
}

func (s *Store) PostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.outbox {
		if e.publishedAt == nil {
			n++
		}
	}
	return n
}

// --- TRANSACTOR ---

type Transactor struct {
	store *Store
}

func NewTransactor(s *Store) *Transactor {
	return &Transactor{store: s}
}

// txState accumule les écritures, appliquées seulement au commit.
type txState struct {
	store  *Store
	claims map[string]string
	posts  []*domain.Post
	facts  []domain.PostCreatedFact
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx ports.TxStores) error) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.NewPersistenceError("begin", err)
	}

	st := &txState{store: s, claims: make(map[string]string)}
	if err := fn(ctx, ports.TxStores{
		Media:  &txMedia{st},
		Posts:  &txPosts{st},
		Outbox: &txOutbox{st},
	}); err != nil {
		return err // rollback : rien n'est appliqué
	}

	if s.commitErr != nil {
		err := s.commitErr
		s.commitErr = nil
		return domain.NewPersistenceError("commit", err)
	}

	// COMMIT
	for mediaID, postID := range st.claims {
		owner := postID
		s.media[mediaID] = &owner
	}
	for _, p := range st.posts {
		s.posts[p.ID] = p
	}
	for _, f := range st.facts {
		s.outbox[f.PostID] = &outboxEntry{fact: f, enqueuedAt: s.now()}
	}
	return nil
}

type txMedia struct{ st *txState }

func (m *txMedia) Find(_ context.Context, ids []string) ([]domain.Media, error) {
	out := make([]domain.Media, 0, len(ids))
	for _, id := range ids {
		owner, ok := m.st.store.media[id]
		if !ok {
			continue
		}
		if staged, claimed := m.st.claims[id]; claimed {
			p := staged
			owner = &p
		}
		out = append(out, domain.Media{ID: id, PostID: owner})
	}
	return out, nil
}

func (m *txMedia) ClaimAll(ctx context.Context, ids []string, postID string) error {
	found, _ := m.Find(ctx, ids)
	byID := make(map[string]domain.Media, len(found))
	for _, md := range found {
		byID[md.ID] = md
	}

	var missing, used []string
	for _, id := range ids {
		md, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case md.IsAttached():
			used = append(used, id)
		}
	}
	if len(missing) > 0 {
		return &domain.MediaNotFoundError{IDs: missing}
	}
	if len(used) > 0 {
		return &domain.MediaAlreadyUsedError{IDs: used}
	}

	for _, id := range ids {
		m.st.claims[id] = postID
	}
	return nil
}

type txPosts struct{ st *txState }

func (p *txPosts) Save(_ context.Context, post *domain.Post) (*domain.Post, error) {
	stored := clonePost(post)
	p.st.posts = append(p.st.posts, stored)
	return clonePost(stored), nil
}

func (p *txPosts) FindByID(_ context.Context, id string) (*domain.Post, error) {
	for _, staged := range p.st.posts {
		if staged.ID == id {
			return clonePost(staged), nil
		}
	}
	if post, ok := p.st.store.posts[id]; ok {
		return clonePost(post), nil
	}
	return nil, domain.ErrPostNotFound
}

func (p *txPosts) FindAuthorWithMemberships(_ context.Context, authorID string) (*domain.Author, error) {
	return p.st.store.author(authorID)
}

type txOutbox struct{ st *txState }

func (o *txOutbox) Enqueue(_ context.Context, fact domain.PostCreatedFact) error {
	o.st.facts = append(o.st.facts, fact)
	return nil
}

func (o *txOutbox) Pending(ctx context.Context, olderThan time.Time, limit int) ([]domain.PostCreatedFact, error) {
	return o.st.store.pending(olderThan, limit), nil
}

func (o *txOutbox) MarkPublished(_ context.Context, postID string) error {
	return o.st.store.markPublished(postID)
}

// --- helpers (mu déjà tenu) ---

func (s *Store) author(id string) (*domain.Author, error) {
	if _, ok := s.users[id]; !ok {
		return nil, domain.ErrAuthorNotFound
	}
	type team struct {
		id       string
		priority int
	}
	teams := make([]team, 0, len(s.memberships[id]))
	for t, prio := range s.memberships[id] {
		teams = append(teams, team{t, prio})
	}
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].priority != teams[j].priority {
			return teams[i].priority < teams[j].priority
		}
		return teams[i].id < teams[j].id
	})

	a := &domain.Author{ID: id, TeamIDs: make([]string, len(teams))}
	for i, t := range teams {
		a.TeamIDs[i] = t.id
	}
	return a, nil
}

func (s *Store) pending(olderThan time.Time, limit int) []domain.PostCreatedFact {
	entries := make([]*outboxEntry, 0)
	for _, e := range s.outbox {
		if e.publishedAt == nil && !e.enqueuedAt.After(olderThan) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].enqueuedAt.Before(entries[j].enqueuedAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	facts := make([]domain.PostCreatedFact, len(entries))
	for i, e := range entries {
		facts[i] = e.fact
	}
	return facts
}

func (s *Store) markPublished(postID string) error {
	e, ok := s.outbox[postID]
	if !ok {
		return domain.ErrPostNotFound
	}
	now := s.now()
	e.publishedAt = &now
	return nil
}

func clonePost(p *domain.Post) *domain.Post {
	c := *p
	c.MediaIDs = append([]string(nil), p.MediaIDs...)
	if p.Title != nil {
		t := *p.Title
		c.Title = &t
	}
	return &c
}
