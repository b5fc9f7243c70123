package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"atelier/internal/catalog/mirror"
	"atelier/internal/catalog/scope"
	"atelier/internal/config"
	"atelier/internal/content"
	"atelier/internal/core/pubsub"
	pubsubmem "atelier/internal/core/pubsub/memory"
	pubsubnats "atelier/internal/core/pubsub/nats"
	"atelier/internal/gateway"
	"atelier/internal/server"
	"atelier/internal/server/ratelimit"
	"atelier/internal/source"
	"atelier/internal/source/memory"
	"atelier/internal/source/mongo"
	"atelier/internal/source/notify"
	"atelier/internal/source/realtime"
	"atelier/internal/upload"
	"atelier/pkg/model"
)

// Factories are variables so tests can swap the external connections.
var (
	pubsubFactory = func(ctx context.Context, cfg config.PubSubConfig) (pubsub.Provider, error) {
		if cfg.Provider == config.PubSubNATS {
			p := pubsubnats.NewProvider(cfg.NATSURL)
			if err := p.Connect(ctx); err != nil {
				return nil, err
			}
			return p, nil
		}
		return pubsubmem.New(), nil
	}

	mongoFactory = func(ctx context.Context, cfg config.MongoConfig) (source.Backend, error) {
		return mongo.Connect(ctx, cfg.URI, cfg.Database, mongo.Options{
			FetchTimeout:  cfg.FetchTimeout,
			RetryInterval: cfg.RetryInterval,
		})
	}
)

// Init connects the backend and builds every component. It does not serve.
func (m *Manager) Init(ctx context.Context) error {
	if m.initialized {
		return errors.New("services already initialized")
	}
	m.initialized = true

	if err := m.initPubSub(ctx); err != nil {
		return err
	}
	if err := m.initBackend(ctx); err != nil {
		return err
	}
	if err := m.initMirrors(); err != nil {
		return err
	}
	if err := m.initContent(); err != nil {
		return err
	}
	m.initGateway()
	return nil
}

func (m *Manager) initPubSub(ctx context.Context) error {
	cfg := m.cfg.PubSub
	if !cfg.Enabled() {
		return nil
	}
	provider, err := pubsubFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pubsub: %w", err)
	}
	m.pubsub = provider
	m.closers = append(m.closers, func(context.Context) error { return provider.Close() })
	m.logger.Info("Initialized PubSub", "provider", cfg.Provider)

	if !m.cfg.Storage.Writable() {
		return nil
	}
	pub, err := provider.NewPublisher(pubsub.PublisherOptions{
		StreamName:    cfg.StreamName,
		SubjectPrefix: cfg.SubjectPrefix,
		RetryAttempts: cfg.RetryAttempts,
		Storage:       pubsub.ParseStorageType(cfg.Storage),
	})
	if err != nil {
		return fmt.Errorf("failed to create change publisher: %w", err)
	}
	m.publisher = pub
	m.closers = append(m.closers, func(context.Context) error { return pub.Close() })
	return nil
}

func (m *Manager) initBackend(ctx context.Context) error {
	cfg := m.cfg.Storage
	switch cfg.Backend {
	case config.BackendMemory:
		st := memory.New()
		if cfg.Memory.SeedFile != "" {
			n, err := loadSeed(st, cfg.Memory.SeedFile)
			if err != nil {
				return err
			}
			m.logger.Info("Seeded memory store", "file", cfg.Memory.SeedFile, "documents", n)
		}
		m.store, m.client = st, st
		m.closers = append(m.closers, st.Close)

	case config.BackendMongo:
		st, err := mongoFactory(ctx, cfg.Mongo)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		m.store = st
		m.closers = append(m.closers, st.Close)
		m.logger.Info("Connected to MongoDB", "database", cfg.Mongo.Database)
		if cfg.Mongo.ChangeStreams {
			m.client = st
			return nil
		}
		src, err := m.notifySource(st)
		if err != nil {
			return err
		}
		src.SetFetchTimeout(cfg.Mongo.FetchTimeout)
		m.client = src

	case config.BackendRealtime:
		rc := realtime.NewClient(cfg.Realtime.URL, realtime.Options{
			Token:         cfg.Realtime.Token,
			RetryInterval: cfg.Realtime.RetryInterval,
		})
		m.client = rc
		m.starters = append(m.starters, rc.Start)
		m.closers = append(m.closers, func(context.Context) error { return rc.Close() })
		m.logger.Info("Using realtime source", "url", cfg.Realtime.URL)

	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	return nil
}

// notifySource follows the view collections of a store without change
// streams by listening to the change events writers publish.
func (m *Manager) notifySource(fetcher notify.Fetcher) (*notify.Source, error) {
	if m.pubsub == nil {
		return nil, errors.New("mongo without change streams needs a pubsub provider")
	}
	cfg := m.cfg.PubSub
	opts := pubsub.DefaultConsumerOptions()
	opts.StreamName = cfg.StreamName
	opts.SubjectPrefix = cfg.SubjectPrefix
	opts.Collections = m.viewCollections()
	opts.Storage = pubsub.ParseStorageType(cfg.Storage)
	consumer, err := m.pubsub.NewConsumer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create change consumer: %w", err)
	}
	src := notify.New(fetcher, consumer)
	m.starters = append(m.starters, src.Start)
	m.closers = append(m.closers, src.Stop)
	return src, nil
}

// loadSeed reads a YAML map of collection name to documents into st.
func loadSeed(st *memory.Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}
	var seed map[string][]model.Document
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	n := 0
	for coll, docs := range seed {
		st.Seed(coll, docs...)
		n += len(docs)
	}
	return n, nil
}

func (m *Manager) initMirrors() error {
	compiler, err := scope.NewCompiler()
	if err != nil {
		return fmt.Errorf("failed to create scope compiler: %w", err)
	}
	for _, v := range m.cfg.Views {
		mc := mirror.Config{
			Collection: v.Collection,
			Order:      v.Order,
			Fields:     v.Fields,
		}
		if v.Scope != "" || len(v.Where) > 0 {
			sc, err := compiler.Compile(v.Scope, v.Where)
			if err != nil {
				return fmt.Errorf("view %q: %w", v.Name, err)
			}
			mc.Scope = sc
		}
		m.mirrors = append(m.mirrors, mirror.New(m.client, mc))
	}
	m.logger.Info("Initialized mirrors", "views", len(m.mirrors))
	return nil
}

// viewCollections lists the collections of the configured views once each.
func (m *Manager) viewCollections() []string {
	seen := make(map[string]bool)
	var collections []string
	for _, v := range m.cfg.Views {
		if !seen[v.Collection] {
			seen[v.Collection] = true
			collections = append(collections, v.Collection)
		}
	}
	return collections
}

func (m *Manager) initContent() error {
	opts := []content.Option{content.WithCollections(m.viewCollections()...)}
	if m.publisher != nil {
		opts = append(opts, content.WithPublisher(m.publisher))
	}
	if m.cfg.Upload.Enabled() {
		u, err := upload.NewHTTPUploader(m.cfg.Upload)
		if err != nil {
			return fmt.Errorf("failed to create uploader: %w", err)
		}
		opts = append(opts, content.WithUploader(u))
	}
	m.content = content.New(m.store, opts...)
	if m.store == nil {
		m.logger.Info("Content writes disabled: backend is read-only")
	}
	return nil
}

func (m *Manager) initGateway() {
	srvCfg := m.cfg.Server
	if m.opts.ListenHost != "" {
		srvCfg.Host = m.opts.ListenHost
	}
	m.server = server.New(srvCfg, slog.Default())

	views := make([]gateway.View, len(m.cfg.Views))
	for i, v := range m.cfg.Views {
		views[i] = gateway.View{Config: v, Mirror: m.mirrors[i]}
	}

	opts := gateway.Options{
		Views:           views,
		Content:         m.content,
		Auth:            m.cfg.Auth,
		AdminRateWindow: srvCfg.AdminRateLimit.Window,
		MaxUploadBytes:  m.cfg.Upload.MaxBytes,
		RequestTimeout:  srvCfg.RequestTimeout,
	}
	if srvCfg.AdminRateLimit.Enabled {
		m.limiter = ratelimit.NewMemoryLimiter(srvCfg.AdminRateLimit)
		opts.AdminLimiter = m.limiter
	}
	m.gateway = gateway.New(opts)
	m.gateway.RegisterRoutes(m.server.HTTPMux())
	m.logger.Info("Registered gateway routes", "admin", m.cfg.Auth.AdminEnabled())
}
