package docpipe

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	keyPrefix     string
	maxRows       int
	maxFanOut     int
	fetchPoolSize int
	cacheSize     int
	spillTTL      time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the key namespace for all collections, indexes, and
// spill blobs. Default: "docpipe:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithMaxRows sets the largest intermediate row set a query may hold in
// memory before it spills (with AllowDiskUse) or fails. Default: 100000.
func WithMaxRows(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxRows = n
	})
}

// WithMaxFanOut caps array elements per document during expansion.
// Default: 1000.
func WithMaxFanOut(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxFanOut = n
	})
}

// WithFetchPoolSize sets the document hydration worker pool size.
// Default: 16.
func WithFetchPoolSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.fetchPoolSize = n
	})
}

// WithCriteriaCacheSize sets the per-client lookup memo size. Default: 512.
func WithCriteriaCacheSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheSize = n
	})
}

// WithSpillTTL sets how long spilled intermediates survive in the store
// before expiring. Default: 10m.
func WithSpillTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.spillTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
