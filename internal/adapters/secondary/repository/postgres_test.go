package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
)

// setupTestDB se connecte à DB_URL (ignoré si absent) et applique les migrations.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		t.Skip("DB_URL not set, skipping Postgres integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool), "Failed to run migrations")
	return pool
}

type seed struct {
	user, team, otherTeam string
	media                 []string
}

// seedData crée un jeu isolé (IDs uniques) pour ne pas interférer entre tests.
func seedData(t *testing.T, pool *pgxpool.Pool, mediaCount int) seed {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	s := seed{user: "u-" + suffix, team: "t-" + suffix, otherTeam: "t2-" + suffix}

	_, err := pool.Exec(ctx, `INSERT INTO users (id) VALUES ($1)`, s.user)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO teams (id, name) VALUES ($1, $1), ($2, $2)`, s.team, s.otherTeam)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO team_memberships (user_id, team_id, priority) VALUES ($1, $2, 0)`, s.user, s.team)
	require.NoError(t, err)

	for i := 0; i < mediaCount; i++ {
		id := "m-" + uuid.NewString()
		_, err = pool.Exec(ctx, `INSERT INTO media (id) VALUES ($1)`, id)
		require.NoError(t, err)
		s.media = append(s.media, id)
	}
	return s
}

func mediaOwner(t *testing.T, pool *pgxpool.Pool, id string) *string {
	t.Helper()
	var owner *string
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT post_id FROM media WHERE id = $1`, id).Scan(&owner))
	return owner
}

func createInTx(ctx context.Context, tx ports.Transactor, post *domain.Post) error {
	return tx.WithinTransaction(ctx, func(ctx context.Context, stores ports.TxStores) error {
		if post.HasMedia() {
			if err := stores.Media.ClaimAll(ctx, post.MediaIDs, post.ID); err != nil {
				return err
			}
		}
		saved, err := stores.Posts.Save(ctx, post)
		if err != nil {
			return err
		}
		return stores.Outbox.Enqueue(ctx, domain.NewPostCreatedFact(saved))
	})
}

func TestPostgres_CreateAndRead(t *testing.T) {
	pool := setupTestDB(t)
	s := seedData(t, pool, 2)
	ctx := context.Background()

	post, err := domain.NewPost("Derby", "What a game", "HIGHLIGHT", s.team, s.user, s.media)
	require.NoError(t, err)
	require.NoError(t, createInTx(ctx, NewTransactor(pool, time.Second, 5*time.Second), post))

	repo := NewPostgresRepo(pool)
	got, err := repo.FindByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, s.media, got.MediaIDs)
	assert.Equal(t, domain.PostTypeHighlight, got.Type)
	require.NotNil(t, got.Title)
	assert.Equal(t, "Derby", *got.Title)
	assert.Equal(t, domain.Counters{}, got.Counters)

	for _, id := range s.media {
		owner := mediaOwner(t, pool, id)
		require.NotNil(t, owner)
		assert.Equal(t, post.ID, *owner)
	}

	pending, err := NewOutbox(pool).Pending(ctx, time.Now().Add(time.Minute), 1000)
	require.NoError(t, err)
	var found bool
	for _, f := range pending {
		if f.PostID == post.ID {
			found = true
			assert.Equal(t, s.media, f.MediaIDs)
		}
	}
	assert.True(t, found, "fact should be pending in outbox")

	require.NoError(t, NewOutbox(pool).MarkPublished(ctx, post.ID))

	author, err := repo.FindAuthorWithMemberships(ctx, s.user)
	require.NoError(t, err)
	assert.Equal(t, []string{s.team}, author.TeamIDs)

	_, err = repo.FindAuthorWithMemberships(ctx, "nobody-"+uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAuthorNotFound)
	_, err = repo.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestPostgres_MembershipIndex(t *testing.T) {
	pool := setupTestDB(t)
	s := seedData(t, pool, 0)
	idx := NewMembershipIndex(pool)

	ok, err := idx.HasAccess(context.Background(), s.user, s.team)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idx.HasAccess(context.Background(), s.user, s.otherTeam)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_ClaimAllOrNothing(t *testing.T) {
	pool := setupTestDB(t)
	s := seedData(t, pool, 2)
	ctx := context.Background()
	tx := NewTransactor(pool, time.Second, 5*time.Second)

	first, err := domain.NewPost("", "first", "GENERAL", s.team, s.user, s.media[1:])
	require.NoError(t, err)
	require.NoError(t, createInTx(ctx, tx, first))

	second, err := domain.NewPost("", "second", "GENERAL", s.team, s.user, s.media)
	require.NoError(t, err)
	err = createInTx(ctx, tx, second)

	var used *domain.MediaAlreadyUsedError
	require.ErrorAs(t, err, &used)
	assert.Equal(t, []string{s.media[1]}, used.IDs)
	assert.Nil(t, mediaOwner(t, pool, s.media[0]))

	_, err = NewPostgresRepo(pool).FindByID(ctx, second.ID)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)

	missing, err := domain.NewPost("", "third", "GENERAL", s.team, s.user, []string{s.media[0], "m-missing"})
	require.NoError(t, err)
	var notFound *domain.MediaNotFoundError
	require.ErrorAs(t, createInTx(ctx, tx, missing), &notFound)
	assert.Equal(t, []string{"m-missing"}, notFound.IDs)
	assert.Nil(t, mediaOwner(t, pool, s.media[0]))
}

func TestPostgres_ConcurrentClaims(t *testing.T) {
	pool := setupTestDB(t)
	s := seedData(t, pool, 3)
	tx := NewTransactor(pool, 5*time.Second, 10*time.Second)

	a, err := domain.NewPost("", "a", "GENERAL", s.team, s.user, s.media[:2])
	require.NoError(t, err)
	b, err := domain.NewPost("", "b", "GENERAL", s.team, s.user, s.media[1:])
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []*domain.Post{a, b} {
		wg.Add(1)
		go func(i int, p *domain.Post) {
			defer wg.Done()
			errs[i] = createInTx(context.Background(), tx, p)
		}(i, p)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrMediaAlreadyUsed)
	}
	assert.Equal(t, 1, successes)

	shared := mediaOwner(t, pool, s.media[1])
	require.NotNil(t, shared)
	assert.Contains(t, []string{a.ID, b.ID}, *shared)
}

func TestPostgres_UnknownTeamIsInvalidInput(t *testing.T) {
	pool := setupTestDB(t)
	s := seedData(t, pool, 0)

	post, err := domain.NewPost("", "x", "GENERAL", "no-such-team-"+uuid.NewString(), s.user, nil)
	require.NoError(t, err)

	err = createInTx(context.Background(), NewTransactor(pool, time.Second, 5*time.Second), post)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTranslatePgError(t *testing.T) {
	timeout := &pgconn.PgError{Code: "55P03"}
	assert.ErrorIs(t, translatePgError(timeout), domain.ErrPersistence)

	fk := &pgconn.PgError{Code: "23503", ConstraintName: "posts_team_id_fkey"}
	assert.ErrorIs(t, translatePgError(fk), domain.ErrInvalidInput)

	other := errors.New("plain")
	assert.Equal(t, other, translatePgError(other))
}

func TestPgInterval(t *testing.T) {
	assert.Equal(t, "1500ms", pgInterval(1500*time.Millisecond))
}
