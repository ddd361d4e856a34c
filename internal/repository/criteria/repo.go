package criteria

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/docpipe/internal/db"
	"github.com/kailas-cloud/docpipe/internal/domain"
	domcrit "github.com/kailas-cloud/docpipe/internal/domain/criteria"
)

// maxMatches bounds how many definitions one (scope, value) pair may yield.
const maxMatches = 32

// store is the consumer interface for criteria lookups (ISP).
type store interface {
	SearchKeys(ctx context.Context, index, query string, offset, limit int) (*db.SearchResult, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
}

// Repo implements pipeline.Finder over the criteria collection, memoizing
// results per (scope, value) so repeated keys in one run hit the index once.
type Repo struct {
	store  store
	prefix string
	cache  *lru.Cache[string, []domcrit.Definition]
}

// New creates a criteria repository over the given key namespace, with an
// LRU memo of the given size. An empty prefix falls back to the default
// namespace.
func New(s store, prefix string, cacheSize int) (*Repo, error) {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[string, []domcrit.Definition](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create lookup cache: %w", err)
	}
	return &Repo{store: s, prefix: prefix, cache: cache}, nil
}

// IndexName is the FT index over the criteria collection under a key prefix.
func IndexName(prefix string) string {
	return prefix + domain.CriteriaCollection + ":idx"
}

// KeyPrefix is the key namespace of the criteria collection under a prefix.
func KeyPrefix(prefix string) string {
	return prefix + domain.CriteriaCollection + ":"
}

// FindByValue returns the definitions matching a value within a scope. The
// scope restriction is part of the index query, so the store narrows by
// initiative before matching values. Zero matches is a valid outcome.
func (r *Repo) FindByValue(
	ctx context.Context, initiative string, value float64,
) ([]domcrit.Definition, error) {
	cacheKey := initiative + "\x1f" + strconv.FormatFloat(value, 'f', -1, 64)
	if defs, ok := r.cache.Get(cacheKey); ok {
		return defs, nil
	}

	v := strconv.FormatFloat(value, 'f', -1, 64)
	query := fmt.Sprintf("@initiative_id:{%s} @value:[%s %s]", escapeTag(initiative), v, v)

	res, err := r.store.SearchKeys(ctx, IndexName(r.prefix), query, 0, maxMatches)
	if err != nil {
		return nil, fmt.Errorf("search criteria: %w", err)
	}

	defs := make([]domcrit.Definition, 0, len(res.Keys))
	for _, key := range res.Keys {
		def, err := r.fetchOne(ctx, key)
		if err != nil {
			return nil, err
		}
		if def != nil {
			defs = append(defs, *def)
		}
	}

	r.cache.Add(cacheKey, defs)
	return defs, nil
}

func (r *Repo) fetchOne(ctx context.Context, key string) (*domcrit.Definition, error) {
	data, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch criteria %s: %w", key, err)
	}

	var defs []domcrit.Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decode criteria %s: %w", key, err)
	}
	if len(defs) == 0 {
		return nil, nil
	}
	return &defs[0], nil
}

// escapeTag escapes RediSearch TAG special characters.
func escapeTag(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';',
			'!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+',
			'=', '~', '|', ' ', '/', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
