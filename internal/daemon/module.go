package daemon

import (
	"context"
	"io"

	"github.com/matheus3301/wppbridge/internal/api"
	"github.com/matheus3301/wppbridge/internal/bridge"
	"github.com/matheus3301/wppbridge/internal/bus"
	"github.com/matheus3301/wppbridge/internal/clock"
	"github.com/matheus3301/wppbridge/internal/config"
	"github.com/matheus3301/wppbridge/internal/conn"
	"github.com/matheus3301/wppbridge/internal/lifecycle"
	"github.com/matheus3301/wppbridge/internal/lock"
	"github.com/matheus3301/wppbridge/internal/logging"
	"github.com/matheus3301/wppbridge/internal/media"
	"github.com/matheus3301/wppbridge/internal/outbound"
	"github.com/matheus3301/wppbridge/internal/provider"
	"github.com/matheus3301/wppbridge/internal/session"
	"github.com/matheus3301/wppbridge/internal/status"
	"github.com/matheus3301/wppbridge/internal/store"
	intsync "github.com/matheus3301/wppbridge/internal/sync"
	"github.com/matheus3301/wppbridge/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config   // nil selects config.Default
	Paths       session.Paths    // zero value selects session.For(SessionName)
	Factory     provider.Factory // nil = whatsmeow, credentials under Config.AuthDir
	Console     io.Writer        // human-readable log mirror; nil logs to file only
}

func (p Params) paths() session.Paths {
	if p.Paths.Dir != "" {
		return p.Paths
	}
	return session.For(p.SessionName)
}

func (p Params) config() *config.Config {
	if p.Config != nil {
		return p.Config
	}
	return config.Default()
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p, p.config()),
		fx.Provide(
			provideLogger,
			bus.New,
			status.NewMachine,
			provideLock,
			provideStore,
			provideCache,
			provideClock,
			provideHolder,
			provideSyncEngine,
			outbound.NewDispatcher,
			provideFactory,
			provideManager,
			provideBridge,
			provideSessionService,
			api.NewChatService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.Open(logging.Options{
		Path:    p.paths().Log,
		Session: p.SessionName,
		Level:   cfg.Log.Level,
		Console: p.Console,
	})
}

func provideLock(lc fx.Lifecycle, p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(p.paths().Lock)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	lc.Append(fx.StopHook(func() {
		if err := l.Release(); err != nil {
			logger.Warn("error releasing lock", zap.Error(err))
		}
	}))
	return l, nil
}

func provideStore(lc fx.Lifecycle, p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.paths().DB
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	lc.Append(fx.StopHook(db.Close))
	return db, nil
}

func provideCache(cfg *config.Config) *media.Cache {
	return media.NewCache(cfg.Media.CacheSize)
}

func provideClock() clock.Clock { return clock.Real() }

func provideHolder() *conn.Holder { return &conn.Holder{} }

func provideSyncEngine(db *store.DB, cache *media.Cache, b *bus.Bus, clk clock.Clock, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, cache, b, clk, intsync.Options{
		IncludeGroups:  cfg.Sync.IncludeGroups,
		AllowedServers: cfg.Sync.AllowedServers,
		BackfillLimit:  cfg.Backfill.MaxMessages,
		BackfillWindow: cfg.Backfill.Window.Duration,
	}, logger.Named("sync"))
}

func provideFactory(lc fx.Lifecycle, p Params, cfg *config.Config, logger *zap.Logger) (provider.Factory, error) {
	if p.Factory != nil {
		return p.Factory, nil
	}
	authDir := cfg.AuthDir(p.SessionName)
	container, err := wa.OpenContainer(context.Background(), authDir, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("credential store opened", zap.String("path", authDir))
	lc.Append(fx.StopHook(container.Close))
	return wa.NewFactory(container, logger), nil
}

func provideManager(factory provider.Factory, holder *conn.Holder, machine *status.Machine, engine *intsync.Engine,
	b *bus.Bus, clk clock.Clock, cfg *config.Config, logger *zap.Logger) *lifecycle.Manager {
	return lifecycle.NewManager(factory, holder, machine, engine, b, lifecycle.Options{
		ReconnectDelay: cfg.Session.ReconnectDelay.Duration,
		Render:         lifecycle.RenderPNG,
		Clock:          clk,
	}, logger.Named("lifecycle"))
}

func provideBridge(m *lifecycle.Manager, holder *conn.Holder, db *store.DB, engine *intsync.Engine,
	d *outbound.Dispatcher, logger *zap.Logger) *bridge.Service {
	return bridge.NewService(m, holder, db, engine, d, logger.Named("bridge"))
}

func provideSessionService(p Params, svc *bridge.Service, b *bus.Bus) *api.SessionService {
	return api.NewSessionService(p.SessionName, svc, b)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, m *lifecycle.Manager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			m.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			// Stored credentials resume without a scan; otherwise this
			// begins pairing and the QR shows up in the status.
			go func() {
				if err := m.Connect(context.Background()); err != nil {
					logger.Error("auto-connect failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			m.Stop()
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
