package docpipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/docpipe/internal/db"
	dbRedis "github.com/kailas-cloud/docpipe/internal/db/redis"
	"github.com/kailas-cloud/docpipe/internal/domain"
	domquery "github.com/kailas-cloud/docpipe/internal/domain/query"
	"github.com/kailas-cloud/docpipe/internal/plan"
	contactrepo "github.com/kailas-cloud/docpipe/internal/repository/contact"
	criteriarepo "github.com/kailas-cloud/docpipe/internal/repository/criteria"
	spillrepo "github.com/kailas-cloud/docpipe/internal/repository/spill"
	healthuc "github.com/kailas-cloud/docpipe/internal/usecase/health"
	queryuc "github.com/kailas-cloud/docpipe/internal/usecase/query"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces so tests can substitute the services.
type queryUseCase interface {
	Execute(ctx context.Context, req domquery.Request) ([]domquery.Group, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the docpipe SDK entry point.
type Client struct {
	store     *dbRedis.Store
	contacts  *contactrepo.Repo
	querySvc  queryUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a docpipe Client and connects to the store. The provided
// context is used for the initial readiness check and index bootstrap.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix:     domain.KeyPrefix,
		maxRows:       100000,
		maxFanOut:     1000,
		fetchPoolSize: 16,
		cacheSize:     512,
		spillTTL:      10 * time.Minute,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("docpipe: store address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("docpipe: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("docpipe: store not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(ctx, store, cfg, obs)
}

func wireClient(ctx context.Context, store *dbRedis.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	contactIndex := ensureIndexes(ctx, store, cfg.keyPrefix)

	contacts, err := contactrepo.New(store, cfg.keyPrefix, cfg.fetchPoolSize)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("docpipe: create contact repository: %w", err)
	}
	criteria, err := criteriarepo.New(store, cfg.keyPrefix, cfg.cacheSize)
	if err != nil {
		contacts.Close()
		store.Close()
		return nil, fmt.Errorf("docpipe: create criteria repository: %w", err)
	}
	spill := spillrepo.New(store, cfg.keyPrefix, cfg.spillTTL)

	planner := plan.NewPlanner(contactIndex, cfg.maxFanOut)
	querySvc := queryuc.New(planner, contacts, criteria, spill, cfg.maxRows)
	healthSvc := healthuc.New(store, store, contactrepo.IndexName(cfg.keyPrefix))

	return &Client{
		store:     store,
		contacts:  contacts,
		querySvc:  querySvc,
		healthSvc: healthSvc,
		obs:       obs,
	}, nil
}

// ensureIndexes creates the FT indexes both collections need. A missing
// contact index only disables pushdown, so failures degrade rather than
// abort.
func ensureIndexes(ctx context.Context, store *dbRedis.Store, prefix string) *plan.Index {
	criteriaDef := db.NewIndex(criteriarepo.IndexName(prefix)).
		OnJSON().
		Prefix(criteriarepo.KeyPrefix(prefix)).
		NumericAs("$.value", "value").
		TagAs("$.initiative_id", "initiative_id").
		MustBuild()
	// Lookups surface store errors per query, so a failed create here is
	// not fatal.
	_ = store.CreateIndex(ctx, criteriaDef)

	contactDef := db.NewIndex(contactrepo.IndexName(prefix)).
		OnJSON().
		Prefix(contactrepo.KeyPrefix(prefix)).
		TagAs("$.initiative_id", "initiative_id").
		NumericAs("$.questions[*].category", "question_category").
		NumericAs("$.questions[*].answers[*].value", "answer_value").
		MustBuild()
	if err := store.CreateIndex(ctx, contactDef); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return nil
	}

	return &plan.Index{
		Name: contactDef.Name,
		Fields: []string{
			plan.FieldInitiative,
			plan.FieldCategory,
			plan.FieldAnswer,
		},
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.contacts != nil {
		c.contacts.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
