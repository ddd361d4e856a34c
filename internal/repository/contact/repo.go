package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kailas-cloud/docpipe/internal/db"
	"github.com/kailas-cloud/docpipe/internal/domain"
	"github.com/kailas-cloud/docpipe/internal/domain/predicate"
	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

const searchPageSize = 256

// store is the consumer interface for contact scans (ISP).
type store interface {
	SearchKeys(ctx context.Context, index, query string, offset, limit int) (*db.SearchResult, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
}

// Repo implements usecase/query.Records: it restricts the contact collection
// with the index-eligible predicate at the store, then hydrates the matched
// documents through a bounded worker pool.
type Repo struct {
	store  store
	prefix string
	pool   *ants.Pool
}

// New creates a contact repository over the given key namespace, with a
// fetch pool of the given size. An empty prefix falls back to the default
// namespace.
func New(s store, prefix string, poolSize int) (*Repo, error) {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	if poolSize <= 0 {
		poolSize = 8
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("create fetch pool: %w", err)
	}
	return &Repo{store: s, prefix: prefix, pool: pool}, nil
}

// Close releases the fetch pool.
func (r *Repo) Close() {
	r.pool.Release()
}

// IndexName is the FT index over the contact collection under a key prefix.
func IndexName(prefix string) string {
	return prefix + domain.ContactsCollection + ":idx"
}

// KeyPrefix is the key namespace of the contact collection under a prefix.
func KeyPrefix(prefix string) string {
	return prefix + domain.ContactsCollection + ":"
}

// Find returns the documents matching the eligible predicate, hydrated into
// rows in a deterministic order. A nil predicate means pushdown was
// unavailable: the collection is key-scanned instead and the pipeline does
// all the filtering.
func (r *Repo) Find(ctx context.Context, eligible predicate.Expr) ([]record.Row, error) {
	keys, err := r.matchKeys(ctx, eligible)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, keys)
}

func (r *Repo) matchKeys(ctx context.Context, eligible predicate.Expr) ([]string, error) {
	if eligible == nil {
		keys, err := r.store.Scan(ctx, KeyPrefix(r.prefix)+"*")
		if err != nil {
			return nil, fmt.Errorf("scan contacts: %w", err)
		}
		// SCAN order is arbitrary; sort so identical snapshots produce
		// identical output.
		sort.Strings(keys)
		return keys, nil
	}

	query, err := renderQuery(eligible)
	if err != nil {
		return nil, fmt.Errorf("render pushdown query: %w", err)
	}

	var keys []string
	for offset := 0; ; offset += searchPageSize {
		res, err := r.store.SearchKeys(ctx, IndexName(r.prefix), query, offset, searchPageSize)
		if err != nil {
			return nil, fmt.Errorf("search contacts: %w", err)
		}
		keys = append(keys, res.Keys...)
		if len(res.Keys) < searchPageSize || len(keys) >= res.Total {
			break
		}
	}
	return keys, nil
}

// hydrate fetches the documents for the given keys concurrently, preserving
// key order in the result.
func (r *Repo) hydrate(ctx context.Context, keys []string) ([]record.Row, error) {
	rows := make([]record.Row, len(keys))
	errs := make([]error, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		submitErr := r.pool.Submit(func() {
			defer wg.Done()
			rows[i], errs[i] = r.fetchOne(ctx, key)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit fetch %s: %w", key, submitErr)
		}
	}
	wg.Wait()

	out := make([]record.Row, 0, len(rows))
	for i, row := range rows {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if row != nil {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *Repo) fetchOne(ctx context.Context, key string) (record.Row, error) {
	data, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			// Deleted between scan and fetch; skip.
			return nil, nil
		}
		return nil, fmt.Errorf("fetch contact %s: %w", key, err)
	}

	// JSONPath "$" replies wrap the document in a one-element array.
	var docs []map[string]any
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode contact %s: %w", key, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return record.Row(docs[0]), nil
}
