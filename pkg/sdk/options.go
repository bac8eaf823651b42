package docingest

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
	driver     string // "valkey", "redis" or "sqlite"
	addrs      []string
	password   string
	sqlitePath string
	keyPrefix  string

	objects        ObjectStore
	objectRoot     string
	maxObjectBytes int64

	summarizer    Summarizer
	embedder      Embedder
	maxInputChars int

	workers       int
	workerTimeout time.Duration
	minTextLength int
	maxTextLength int

	chunkTargetLength int
	k                 int
	lambda            float64
	selectorSet       bool

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores documents in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores documents in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithSQLite stores documents in a SQLite file, created on first use.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.sqlitePath = path
	})
}

// WithKeyPrefix namespaces Valkey/Redis keys. Default: "docingest:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithFSObjects reads uploads from files under root, keyed by relative path.
func WithFSObjects(root string) Option {
	return optionFunc(func(c *clientConfig) {
		c.objectRoot = root
	})
}

// WithObjectStore reads uploads from a custom store. Takes precedence over WithFSObjects.
func WithObjectStore(s ObjectStore) Option {
	return optionFunc(func(c *clientConfig) {
		c.objects = s
	})
}

// WithMaxObjectBytes caps the size of a fetched upload. Default: 64 MiB.
func WithMaxObjectBytes(n int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxObjectBytes = n
	})
}

// WithSummarizer sets the summarization provider. Required.
func WithSummarizer(s Summarizer) Option {
	return optionFunc(func(c *clientConfig) {
		c.summarizer = s
	})
}

// WithMaxSummaryInput bounds the text sent to the summarizer. Zero sends the full text.
func WithMaxSummaryInput(chars int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxInputChars = chars
	})
}

// WithEmbedder sets the text embedding provider.
// It enables diverse summary input selection and Context.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithWorkers sets the number of concurrent processing workers. Default: 4.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithWorkerTimeout bounds a single processing attempt. Default: 5m.
func WithWorkerTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.workerTimeout = d
	})
}

// WithTextLimits sets the minimum viable and maximum stored extracted text length, in characters.
// Defaults: 10 and 500000.
func WithTextLimits(minChars, maxChars int) Option {
	return optionFunc(func(c *clientConfig) {
		c.minTextLength = minChars
		c.maxTextLength = maxChars
	})
}

// WithSelector sets segmentation and MMR defaults.
// Defaults: target length 1600, k 12, lambda 0.7.
func WithSelector(targetLength, k int, lambda float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkTargetLength = targetLength
		c.k = k
		c.lambda = lambda
		c.selectorSet = true
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
