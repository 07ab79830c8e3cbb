package continuity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/browserbase-mcp/pkg/logging"
)

// conflictingClient is a redis client whose optimistic transactions always
// lose to another writer. Only Watch is implemented.
type conflictingClient struct {
	redis.UniversalClient

	mu      sync.Mutex
	watches int
}

func (c *conflictingClient) Watch(_ context.Context, _ func(*redis.Tx) error, _ ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watches++
	return redis.TxFailedErr
}

func (c *conflictingClient) attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watches
}

func newConflictingStore(t *testing.T, backoff time.Duration) (*Store, *conflictingClient) {
	t.Helper()
	client := &conflictingClient{}
	store, err := NewStore(StoreOptions{
		Redis:        client,
		MaxRetries:   3,
		RetryBackoff: backoff,
		Logger:       logging.Discard("continuity"),
	})
	require.NoError(t, err)
	return store, client
}

func TestStore_SaveGivesUpAfterRetries(t *testing.T) {
	store, client := newConflictingStore(t, time.Millisecond)

	err := store.Save(context.Background(), "proj", &Projection{Session: &SessionState{CurrentSessionID: "main"}}, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSaveConflict))
	assert.Equal(t, 3, client.attempts(), "one attempt plus two retries")
}

func TestStore_SaveUsesConfiguredRetriesByDefault(t *testing.T) {
	store, client := newConflictingStore(t, time.Millisecond)

	err := store.Save(context.Background(), "proj", &Projection{}, 0)
	assert.ErrorIs(t, err, ErrSaveConflict)
	assert.Equal(t, 4, client.attempts())
}

func TestStore_SaveStopsWhenContextEnds(t *testing.T) {
	store, client := newConflictingStore(t, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := store.Save(ctx, "proj", &Projection{}, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrSaveConflict)
	assert.Equal(t, 1, client.attempts())
}
