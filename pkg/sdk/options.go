package momentum

import (
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "redis" or "memory"
	addrs    []string
	password string

	collections []Collection
	schemaPath  string
	plugins     []Plugin

	webhookURL    string
	webhookSecret string

	defaultPageSize int
	maxPageSize     int

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory configures the client to keep all data in process memory.
// Useful for tests and prototypes; nothing survives a restart.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithCollections registers code-built collection definitions.
func WithCollections(cols ...Collection) Option {
	return optionFunc(func(c *clientConfig) {
		c.collections = append(c.collections, cols...)
	})
}

// WithSchemaFile loads collection definitions from a YAML file.
func WithSchemaFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.schemaPath = path
	})
}

// WithPlugins registers plugins that contribute hooks and extra fields.
func WithPlugins(plugins ...Plugin) Option {
	return optionFunc(func(c *clientConfig) {
		c.plugins = append(c.plugins, plugins...)
	})
}

// WithWebhook enables signed event delivery to the given endpoint.
func WithWebhook(url, secret string) Option {
	return optionFunc(func(c *clientConfig) {
		c.webhookURL = url
		c.webhookSecret = secret
	})
}

// WithPagination overrides the default and maximum page sizes for listings.
func WithPagination(defaultSize, maxSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultPageSize = defaultSize
		c.maxPageSize = maxSize
	})
}

// WithLogger enables structured logging for engine operations.
// Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
