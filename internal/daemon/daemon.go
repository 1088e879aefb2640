package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/api"
	"github.com/ritim-app/ritim/internal/app/engagement"
	"github.com/ritim-app/ritim/internal/domain"
	"github.com/ritim-app/ritim/internal/health"
	"github.com/ritim-app/ritim/internal/infra/breaker"
	"github.com/ritim-app/ritim/internal/infra/postgres"
	"github.com/ritim-app/ritim/internal/infra/sqlite"
	"github.com/ritim-app/ritim/internal/jobs"
	"github.com/ritim-app/ritim/internal/notify"
)

// Store is what the daemon needs from a storage backend. Both the sqlite
// and postgres stores satisfy it.
type Store interface {
	domain.DocumentStore
	domain.NotificationStore
	ListUsers(ctx context.Context) ([]string, error)
}

// Daemon is the core ritim runtime. It wires together all services.
type Daemon struct {
	Config        Config
	Store         Store
	Users         *engagement.Registry
	Notifications *engagement.NotificationService // nil when notify.enabled is false
	Health        *health.Checker
	Jobs          *jobs.Scheduler
	Server        *api.Server

	detach    func()
	logFile   io.Closer
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(context.Background(), cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logFile, err := configureLogging(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, dataDir, err := openStore(ctx, cfg.Storage)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, err
	}

	clock := cfg.EngineClock()
	guard := breaker.New("store", cfg.BreakerConfig())
	users := engagement.NewRegistry(store, engagement.Options{
		Clock:   clock,
		Rules:   cfg.XP,
		Retry:   cfg.RetryConfig(),
		Breaker: guard,
	})

	d := &Daemon{
		Config:  cfg,
		Store:   store,
		Users:   users,
		Health:  health.NewChecker(store, dataDir),
		Jobs:    jobs.NewScheduler(users, clock),
		Server:  api.NewServer(users),
		logFile: logFile,
		detach:  func() {},
	}

	interval, _ := parseDuration(cfg.Server.HealthInterval)
	d.Health.SetInterval(interval)
	d.Health.AddCheck(health.Check{
		Name: "store_breaker",
		CheckFn: func(ctx context.Context) error {
			if guard.State() == breaker.Open {
				return breaker.ErrOpen
			}
			return nil
		},
	})
	d.Server.SetHealth(d.Health)
	if cfg.Server.Metrics {
		d.Server.EnableMetrics()
	}

	// Notification inbox
	if cfg.Notify.Enabled {
		n := engagement.NewNotificationServiceWithPolicy(store, clock, cfg.NotificationPolicy())
		if cfg.Notify.Telegram.Token != "" {
			tg, err := notify.NewTelegram(cfg.Notify.Telegram)
			if err != nil {
				d.Close()
				return nil, err
			}
			n.WithSender(tg)
		}
		d.Notifications = n
		d.detach = n.Attach(users.Bus())
		d.Server.SetNotifications(n)
	}

	log.WithFields(log.Fields{
		"component": "daemon",
		"driver":    cfg.Storage.Driver,
		"timezone":  clock.Location.String(),
		"cutoff":    clock.Cutoff,
	}).Debug("daemon initialized")
	return d, nil
}

// openStore opens the configured backend. dataDir is the local directory
// the health checker should watch, empty for remote stores.
func openStore(ctx context.Context, cfg StorageConfig) (Store, string, error) {
	switch cfg.Driver {
	case DriverPostgres:
		s, err := postgres.Open(ctx, cfg.DSN, postgres.PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}
		return s, "", nil
	default:
		db, err := sqlite.Open(cfg.Dir)
		if err != nil {
			return nil, "", fmt.Errorf("open database: %w", err)
		}
		return db, cfg.Dir, nil
	}
}

// configureLogging applies the logging section to the global logrus
// logger. The returned closer is non-nil when logs go to a file.
func configureLogging(cfg LoggingConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if cfg.File == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}

// Preload loads every stored user so the rollover job covers users that
// have not been touched since the daemon started.
func (d *Daemon) Preload(ctx context.Context) (int, error) {
	ids, err := d.Store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	loaded := 0
	for _, id := range ids {
		if _, err := d.Users.Get(ctx, id); err != nil {
			log.WithError(err).WithField("user", id).Warn("preload failed")
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	logger := log.WithField("component", "daemon")

	// ─── Background services ───────────────────────────────────────────

	// Health checker (always runs)
	go d.Health.Run(ctx)

	n, err := d.Preload(ctx)
	if err != nil {
		logger.WithError(err).Warn("preload skipped")
	} else {
		logger.WithField("users", n).Info("users loaded")
	}

	// Catch up on a rollover missed while the daemon was down.
	d.Jobs.RunRollover(ctx)
	if err := d.Jobs.Start(ctx); err != nil {
		cancel()
		return err
	}

	addr := d.Config.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		d.Jobs.Stop()
		cancel()
	}()

	fmt.Printf("ritim serving on http://%s\n", addr)
	if d.Config.Server.Metrics {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	err = httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	cancel()
	<-done
	d.Close()
	return err
}

// Close shuts down all daemon resources. It is safe to call more than once.
func (d *Daemon) Close() {
	d.closeOnce.Do(d.close)
}

func (d *Daemon) close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.detach != nil {
		d.detach()
	}
	if d.Notifications != nil {
		d.Notifications.Close()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
	if d.logFile != nil {
		_ = d.logFile.Close()
		log.SetOutput(os.Stderr)
	}
}
