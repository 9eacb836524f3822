package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minsuRob/sportcomm-sub010/internal/adapters/secondary/memory"
	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

func enqueue(t *testing.T, outbox *memory.Outbox, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, outbox.Enqueue(context.Background(), domain.PostCreatedFact{PostID: id, TeamID: "t1"}))
	}
}

func newTestRelay(outbox *memory.Outbox, pub *MockPublisher) *OutboxRelay {
	relay := NewOutboxRelay(outbox, pub)
	relay.Grace = 0
	relay.MaxTries = 1
	return relay
}

func TestOutboxRelay_RepublishesPending(t *testing.T) {
	store := memory.NewStore()
	outbox := memory.NewOutbox(store)
	enqueue(t, outbox, "p1", "p2")

	pub := new(MockPublisher)
	pub.On("PublishPostCreated", mock.Anything, mock.Anything).Return(nil)

	n, err := newTestRelay(outbox, pub).Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, store.PendingCount())

	// Deuxième passe : plus rien à faire
	n, err = newTestRelay(outbox, pub).Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	pub.AssertNumberOfCalls(t, "PublishPostCreated", 2)
}

func TestOutboxRelay_KeepsFailedFacts(t *testing.T) {
	store := memory.NewStore()
	outbox := memory.NewOutbox(store)
	enqueue(t, outbox, "p1", "p2")

	pub := new(MockPublisher)
	pub.On("PublishPostCreated", mock.Anything, mock.MatchedBy(func(f domain.PostCreatedFact) bool {
		return f.PostID == "p1"
	})).Return(errors.New("broker down"))
	pub.On("PublishPostCreated", mock.Anything, mock.MatchedBy(func(f domain.PostCreatedFact) bool {
		return f.PostID == "p2"
	})).Return(nil)

	n, err := newTestRelay(outbox, pub).Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.PendingCount())
}

func TestOutboxRelay_RespectsGrace(t *testing.T) {
	store := memory.NewStore()
	outbox := memory.NewOutbox(store)
	enqueue(t, outbox, "p1")

	pub := new(MockPublisher)
	relay := newTestRelay(outbox, pub)
	relay.Grace = time.Hour

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	pub.AssertNotCalled(t, "PublishPostCreated", mock.Anything, mock.Anything)
}

func TestOutboxRelay_RecoversAfterPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.On("PublishPostCreated", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	f.publisher.On("PublishPostCreated", mock.Anything, mock.Anything).Return(nil)

	post, err := f.service.CreatePost(context.Background(), cmd("t1", "u1", "m1"))
	require.NoError(t, err)
	f.service.Wait()
	require.Equal(t, 1, f.store.PendingCount())

	n, err := newTestRelay(memory.NewOutbox(f.store), f.publisher).Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, f.store.PendingCount())

	last := f.publisher.Calls[len(f.publisher.Calls)-1].Arguments.Get(1).(domain.PostCreatedFact)
	assert.Equal(t, post.ID, last.PostID)
}

func TestOutboxRelay_RunStopsOnCancel(t *testing.T) {
	relay := newTestRelay(memory.NewOutbox(memory.NewStore()), new(MockPublisher))
	relay.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
