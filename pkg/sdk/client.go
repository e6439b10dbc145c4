package momentum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/momentum-hq/momentum/internal/db/redis"
	"github.com/momentum-hq/momentum/internal/registry"
	documentrepo "github.com/momentum-hq/momentum/internal/repository/document"
	"github.com/momentum-hq/momentum/internal/repository/memory"
	versionrepo "github.com/momentum-hq/momentum/internal/repository/version"
	"github.com/momentum-hq/momentum/internal/schema"
	"github.com/momentum-hq/momentum/internal/transport/webhook"
	batchuc "github.com/momentum-hq/momentum/internal/usecase/batch"
	"github.com/momentum-hq/momentum/internal/usecase/lifecycle"
	transferuc "github.com/momentum-hq/momentum/internal/usecase/transfer"
	versioninguc "github.com/momentum-hq/momentum/internal/usecase/versioning"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultWebhookTimeout   = 10 * time.Second
)

// Client is the momentum SDK entry point.
type Client struct {
	reg        *registry.Registry
	lifecycle  *lifecycle.Service
	versions   *versioninguc.Service
	batch      *batchuc.Service
	transfer   *transferuc.Service
	dispatcher *webhook.Dispatcher
	closeStore func()
}

// New creates an embedded engine client. The provided context bounds the
// initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.driver == "" {
		return nil, errors.New("momentum: storage required (use WithRedis or WithMemory)")
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("momentum: %w", err)
	}

	var (
		storage     lifecycle.Storage
		versionRepo versioninguc.Repository
		closeStore  = func() {}
	)
	switch cfg.driver {
	case "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, fmt.Errorf("momentum: create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("momentum: database not ready: %w", err)
		}
		storage = documentrepo.New(store)
		versionRepo = versionrepo.New(store)
		closeStore = store.Close
	case "memory":
		mem := memory.New()
		storage = mem
		versionRepo = mem
	default:
		return nil, fmt.Errorf("momentum: unknown driver %q", cfg.driver)
	}

	var notifier lifecycle.Notifier
	var dispatcher *webhook.Dispatcher
	if cfg.webhookURL != "" {
		dispatcher = webhook.New(cfg.webhookURL, cfg.webhookSecret, defaultWebhookTimeout, cfg.logger)
		notifier = dispatcher
	}

	lifecycleSvc := lifecycle.New(reg, storage, notifier, cfg.logger)
	if cfg.defaultPageSize > 0 || cfg.maxPageSize > 0 {
		lifecycleSvc = lifecycleSvc.WithPagination(cfg.defaultPageSize, cfg.maxPageSize)
	}

	return &Client{
		reg:        reg,
		lifecycle:  lifecycleSvc,
		versions:   versioninguc.New(reg, versionRepo, storage, cfg.logger),
		batch:      batchuc.New(lifecycleSvc),
		transfer:   transferuc.New(reg, lifecycleSvc, lifecycleSvc, cfg.logger),
		dispatcher: dispatcher,
		closeStore: closeStore,
	}, nil
}

func buildRegistry(cfg *clientConfig) (*registry.Registry, error) {
	builder := registry.NewBuilder()
	if cfg.schemaPath != "" {
		cols, err := schema.Load(cfg.schemaPath)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			builder.AddCollection(col)
		}
	}
	for _, col := range cfg.collections {
		builder.AddCollection(col)
	}
	builder.Use(cfg.plugins...)
	return builder.Build()
}

// Collections lists the registered collection slugs.
func (c *Client) Collections() []string {
	return c.reg.Slugs()
}

// Documents returns the document sub-client for a collection.
func (c *Client) Documents(slug string) *Documents {
	return &Documents{client: c, slug: slug}
}

// Versions returns the versioning sub-client for a collection.
func (c *Client) Versions(slug string) *Versions {
	return &Versions{client: c, slug: slug}
}

// Close releases the underlying store and waits for in-flight webhook
// deliveries.
func (c *Client) Close() {
	if c.dispatcher != nil {
		c.dispatcher.Wait()
	}
	c.closeStore()
}
