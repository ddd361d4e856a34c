package spill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/docpipe/internal/domain"
	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// kvStore is the consumer interface for spill storage (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Store implements pipeline.Spiller: intermediate row sets are parked in the
// document store under uuid tokens with a TTL backstop, so abandoned spills
// expire on their own.
type Store struct {
	kv     kvStore
	prefix string
	ttl    time.Duration
}

// New creates a spill store under the given key namespace. An empty prefix
// falls back to the default namespace.
func New(kv kvStore, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{kv: kv, prefix: prefix, ttl: ttl}
}

func (s *Store) key(token string) string {
	return s.prefix + "spill:" + token
}

// Put serializes the rows into the store and returns the spill token.
func (s *Store) Put(ctx context.Context, rows []record.Row) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode spill: %w", err)
	}
	token := uuid.NewString()
	if err := s.kv.SetWithTTL(ctx, s.key(token), data, s.ttl); err != nil {
		return "", fmt.Errorf("write spill: %w", err)
	}
	return token, nil
}

// Get reads the rows back for a token, in their original order.
func (s *Store) Get(ctx context.Context, token string) ([]record.Row, error) {
	data, err := s.kv.Get(ctx, s.key(token))
	if err != nil {
		return nil, fmt.Errorf("read spill %s: %w", token, err)
	}
	var rows []record.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode spill %s: %w", token, err)
	}
	return rows, nil
}

// Drop removes a spill best-effort; the TTL covers failures.
func (s *Store) Drop(ctx context.Context, token string) {
	_ = s.kv.Del(ctx, s.key(token))
}
