// Package continuity persists execution state between requests that may be
// served by different processes.
//
// The Store keeps one Projection per tenant in a Redis hash with the fields
// "session", "resources", "snapshots" and "meta", each a JSON document. Saves
// merge into the stored hash under WATCH, so concurrent writers for the same
// tenant contribute rather than clobber, and refresh the key's TTL so an
// abandoned tenant's state expires on its own.
//
// The Dispatcher runs tool calls with rehydration: it rebuilds an
// execution.Context from the Store before each call and saves it afterwards.
package continuity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/entrhq/browserbase-mcp/pkg/logging"
)

// ErrSaveConflict is returned by Save when concurrent writers kept modifying
// the projection through every retry.
var ErrSaveConflict = errors.New("projection save conflicted on every attempt")

// Defaults for StoreOptions.
const (
	DefaultKeyPrefix    = "browserbase:context:"
	DefaultTTL          = 10 * time.Minute
	DefaultMaxRetries   = 5
	DefaultRetryBackoff = 50 * time.Millisecond
)

// Cache is the persistence the Dispatcher needs. Store is the Redis
// implementation.
type Cache interface {
	Load(ctx context.Context, tenant string) (*Projection, error)
	Save(ctx context.Context, tenant string, partial *Projection, maxRetries int) error
	Delete(ctx context.Context, tenant string) error
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Redis is the client for the shared cache.
	Redis redis.UniversalClient
	// KeyPrefix is prepended to the tenant key. Defaults to DefaultKeyPrefix.
	KeyPrefix string
	// TTL is refreshed on every save. Defaults to DefaultTTL.
	TTL time.Duration
	// MaxRetries bounds retries of a conflicting save when the caller passes
	// zero. Defaults to DefaultMaxRetries.
	MaxRetries int
	// RetryBackoff is the base wait between retries; attempt n waits n times
	// the base. Defaults to DefaultRetryBackoff.
	RetryBackoff time.Duration
	Logger       *logging.Logger
}

// Store is the Redis-backed Cache.
type Store struct {
	rdb     redis.UniversalClient
	opts    StoreOptions
	logger  *logging.Logger
	nowFunc func() time.Time
}

// NewStore creates a Store.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &Store{rdb: opts.Redis, opts: opts, logger: opts.Logger, nowFunc: time.Now}, nil
}

// Key returns the Redis key of tenant.
func (s *Store) Key(tenant string) string {
	return s.opts.KeyPrefix + tenant
}

// Load reads the projection of tenant. It returns nil when nothing is cached.
// Invalid fields are discarded individually.
func (s *Store) Load(ctx context.Context, tenant string) (*Projection, error) {
	fields, err := s.rdb.HGetAll(ctx, s.Key(tenant)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load projection %s: %w", tenant, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	p := decode(fields, s.logger)
	if p.Empty() {
		return nil, nil
	}
	return p, nil
}

// Save merges partial into the stored projection of tenant and refreshes the
// TTL. A save that races with another writer is retried up to maxRetries
// times (the configured default when maxRetries is zero) before failing with
// ErrSaveConflict.
func (s *Store) Save(ctx context.Context, tenant string, partial *Projection, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = s.opts.MaxRetries
	}
	key := s.Key(tenant)

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		merged := Merge(decode(fields, s.logger), partial)
		merged.Meta = &Meta{UpdatedAt: s.nowFunc().UTC()}
		values, err := merged.encode()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			pipe.Expire(ctx, key, s.opts.TTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("save projection %s: %w", tenant, err)
		}
		s.logger.Debugf("save projection %s: concurrent modification (attempt %d)", tenant, attempt+1)
		if attempt == maxRetries {
			break
		}
		if err := sleepWithContext(ctx, time.Duration(attempt+1)*s.opts.RetryBackoff); err != nil {
			return fmt.Errorf("save projection %s: %w", tenant, err)
		}
	}
	return fmt.Errorf("%w: tenant %s after %d retries", ErrSaveConflict, tenant, maxRetries)
}

// Delete removes the projection of tenant.
func (s *Store) Delete(ctx context.Context, tenant string) error {
	if err := s.rdb.Del(ctx, s.Key(tenant)).Err(); err != nil {
		return fmt.Errorf("delete projection %s: %w", tenant, err)
	}
	return nil
}

// TTL returns the remaining lifetime of tenant's projection.
func (s *Store) TTL(ctx context.Context, tenant string) (time.Duration, error) {
	return s.rdb.TTL(ctx, s.Key(tenant)).Result()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
