package sync

import (
	"context"
	"fmt"
	"net"
	goSync "sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orange-bot/botsync/config"
	"github.com/orange-bot/botsync/internal/log"
	"github.com/orange-bot/botsync/internal/metrics"
)

// Handler is the SyncHandler core: one mesh participant. All dependencies
// are passed in explicitly at construction (logger, clock, metrics)
// instead of reaching for package-level singletons, so a test can run
// several independent Handlers in one process.
type Handler struct {
	cfg     *config.Config
	tls     *TLSMaterial
	logger  zerolog.Logger
	clock   Clock
	metrics *metrics.Set

	table *PeerTable
	cache *PeerAddressCache
	trace *Trace

	registry  ModuleRegistry
	cacheSink ConfigCacheSink

	selfVersion string
	selfEnv     string
	selfUserID  string
	selfPriority int64

	idCounter atomic.Uint64

	mu       goSync.Mutex
	conns    map[string]*conn
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     goSync.WaitGroup
}

// Option customizes a Handler at construction.
type Option func(*handlerConfig)

type handlerConfig struct {
	logger        zerolog.Logger
	clock         Clock
	metrics       *metrics.Set
	peerCachePath string
	priority      int64
	havePriority  bool
}

// WithLogger overrides the default component logger.
func WithLogger(l zerolog.Logger) Option { return func(c *handlerConfig) { c.logger = l } }

// WithClock overrides the default wall clock, for deterministic tests.
func WithClock(clk Clock) Option { return func(c *handlerConfig) { c.clock = clk } }

// WithMetrics attaches a metrics.Set; defaults to an unregistered one.
func WithMetrics(m *metrics.Set) Option { return func(c *handlerConfig) { c.metrics = m } }

// WithPeerCachePath overrides the on-disk peer address cache location.
func WithPeerCachePath(path string) Option { return func(c *handlerConfig) { c.peerCachePath = path } }

// WithPriority pins this node's election priority instead of deriving it
// from wall-clock-ms at construction time.
func WithPriority(p int64) Option {
	return func(c *handlerConfig) { c.priority = p; c.havePriority = true }
}

// New builds a Handler. version/env/userID gate every hello exchange;
// tlsMat comes from LoadCertificates.
func New(cfg *config.Config, tlsMat *TLSMaterial, version, env, userID string, registry ModuleRegistry, cacheSink ConfigCacheSink, opts ...Option) (*Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if tlsMat == nil {
		return nil, fmt.Errorf("tls material is nil")
	}
	if registry == nil || cacheSink == nil {
		return nil, fmt.Errorf("registry and cacheSink are required")
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return nil, diskErr("init logger", err)
	}

	hc := &handlerConfig{
		logger:        log.WithComponent("sync"),
		clock:         RealClock,
		peerCachePath: DefaultPeerAddressCachePath(),
	}
	for _, opt := range opts {
		opt(hc)
	}
	if hc.metrics == nil {
		hc.metrics = metrics.NewUnregistered()
	}

	selfName := cfg.InstanceName
	if selfName == "" {
		selfName = uuid.NewString()
	}

	priority := hc.priority
	if !hc.havePriority {
		priority = hc.clock.Now().UnixMilli()
	}

	table := NewPeerTable(selfName, priority, hc.clock)
	cache := NewPeerAddressCache(hc.peerCachePath, hc.logger)

	ctx, cancel := context.WithCancel(context.Background())

	h := &Handler{
		cfg:          cfg,
		tls:          tlsMat,
		logger:       hc.logger,
		clock:        hc.clock,
		metrics:      hc.metrics,
		table:        table,
		cache:        cache,
		trace:        NewTrace(),
		registry:     registry,
		cacheSink:    cacheSink,
		selfVersion:  version,
		selfEnv:      env,
		selfUserID:   userID,
		selfPriority: priority,
		conns:        make(map[string]*conn),
		ctx:          ctx,
		cancel:       cancel,
	}

	h.seedPeers()
	return h, nil
}

// seedPeers loads the Peer Address Cache and the configured peer list into
// the table before the transport starts dialing.
func (h *Handler) seedPeers() {
	cached, err := h.cache.Load()
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to load peer address cache")
	}
	for _, p := range cached {
		h.table.Learn(p.Name, p.Address)
	}
	for _, addr := range h.cfg.Peers {
		h.table.Learn(addr, addr)
	}
}

func (h *Handler) nextID() uint64 {
	return h.idCounter.Add(1)
}

// DebugView is a read-only snapshot exposed to an operator command.
type DebugView struct {
	Peers      []Peer
	Controller string
	SelfName   string
	Modules    []LocalModule
	Trace      []TraceEntry
}

// Debug returns the current Peer Table, controller, and module assignment
// state for inspection.
func (h *Handler) Debug() DebugView {
	return DebugView{
		Peers:      h.table.Snapshot(),
		Controller: h.table.Controller(),
		SelfName:   h.table.SelfName(),
		Modules:    h.registry.Modules(),
		Trace:      h.trace.Recent(),
	}
}
