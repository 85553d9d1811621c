// Package agent initializes and runs the session core: account state is
// restored from the local database, the idle timeout monitor and the
// notification router start, and everything shuts down on SIGINT/SIGTERM.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/account/store"
	"github.com/dmitrijs2005/vaultcore/internal/auth"
	"github.com/dmitrijs2005/vaultcore/internal/config"
	"github.com/dmitrijs2005/vaultcore/internal/logging"
	"github.com/dmitrijs2005/vaultcore/internal/notifications"
	"github.com/dmitrijs2005/vaultcore/internal/notifications/hub"
	"github.com/dmitrijs2005/vaultcore/internal/notifications/push"
	"github.com/dmitrijs2005/vaultcore/internal/vault"
	"github.com/dmitrijs2005/vaultcore/internal/vaulttimeout"
)

type App struct {
	config *config.Config
	logger logging.Logger

	store    *store.Bolt
	registry *account.Registry
	tokens   *auth.TokenStore
	keys     *auth.KeyStore
	resolver *auth.Resolver
	settings *vaulttimeout.Settings

	ciphers     *vault.Cache
	collections *vault.Cache
	folders     *vault.FolderCache
	search      *vault.SearchIndex

	monitor *vaulttimeout.Monitor
	router  *notifications.Router
	redis   *redis.Client // nil when push is not configured
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	st, err := store.NewBolt(c.StatePath)
	if err != nil {
		return nil, fmt.Errorf("state db init error: %w", err)
	}

	app := &App{
		config:      c,
		logger:      logger,
		store:       st,
		registry:    account.NewRegistry(logger, st),
		tokens:      auth.NewTokenStore(logger),
		keys:        auth.NewKeyStore(),
		settings:    vaulttimeout.NewSettings(vaulttimeout.Timeout{Mode: vaulttimeout.ModeOnRestart}),
		ciphers:     vault.NewCache(),
		collections: vault.NewCache(),
		folders:     vault.NewFolderCache(),
		search:      vault.NewSearchIndex(),
	}
	app.resolver = auth.NewResolver(app.registry, app.tokens, app.keys)

	app.monitor = vaulttimeout.NewMonitor(logger, vaulttimeout.MonitorDeps{
		Registry:      app.registry,
		Resolver:      app.resolver,
		Settings:      app.settings,
		Keys:          app.keys,
		Ciphers:       app.ciphers,
		Folders:       app.folders,
		Collections:   app.collections,
		Search:        app.search,
		Logout:        app.Logout,
		CheckInterval: c.IdleCheckInterval,
	})

	if c.PushRedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.PushRedisAddr})
	}
	pushConn := push.NewConnector(logger, redisOrNil(app.redis))
	hubConn := hub.NewConnector(logger, hub.Config{
		URL:          c.HubURL,
		ReconnectMin: c.ReconnectMin,
		ReconnectMax: c.ReconnectMax,
	}, app.tokens)

	appID := c.AppID
	if appID == "" {
		appID = uuid.NewString()
	}

	app.router = notifications.NewRouter(logger, notifications.Options{
		AppID:            appID,
		NotificationsURL: c.NotificationsURL,
		MultiUser:        c.MultiUser,
		PushWhileLocked:  c.PushWhileLocked,
	}, notifications.Deps{
		Registry:     app.registry,
		Resolver:     app.resolver,
		Push:         pushConn,
		Hub:          hubConn,
		Sync:         &cacheInvalidator{app: app},
		Logout:       app.Logout,
		AuthRequests: &authRequestLog{logger: logger},
	})

	return app, nil
}

// redisOrNil keeps the connector's nil check working: a nil *redis.Client in
// a non-nil interface value would defeat it.
func redisOrNil(c *redis.Client) redis.UniversalClient {
	if c == nil {
		return nil
	}
	return c
}

// Logout fully signs id out: credential and key material is dropped, caches
// are cleared, profile info is blanked, and the LoggedOut status is recorded.
func (app *App) Logout(ctx context.Context, id account.UserID, reason string) error {
	app.logger.Info(ctx, "logging out", "user_id", id, "reason", reason)

	app.tokens.ClearAccessToken(ctx, id)
	app.keys.ClearUserKey(id)

	if err := app.ciphers.ClearCache(ctx, id); err != nil {
		app.logger.Warn(ctx, "failed to clear cipher cache", "user_id", id, "error", err)
	}
	if err := app.folders.ClearCache(ctx, id); err != nil {
		app.logger.Warn(ctx, "failed to clear folder cache", "user_id", id, "error", err)
	}
	if err := app.collections.ClearCache(ctx, id); err != nil {
		app.logger.Warn(ctx, "failed to clear collection cache", "user_id", id, "error", err)
	}
	if active, ok := app.registry.ActiveAccount(); ok && active.ID == id {
		if err := app.search.ClearIndex(ctx); err != nil {
			app.logger.Warn(ctx, "failed to clear search index", "error", err)
		}
		if err := app.folders.ClearDecrypted(ctx); err != nil {
			app.logger.Warn(ctx, "failed to clear decrypted folders", "error", err)
		}
	}

	if err := app.registry.Clean(ctx, id); err != nil {
		return fmt.Errorf("clean account state: %w", err)
	}
	return app.registry.SetAccountStatus(ctx, id, account.StatusLoggedOut)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.registry.Restore(ctx); err != nil {
		app.logger.Error(ctx, "failed to restore account state", "error", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.monitor.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.router.Run(ctx)
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "failed to close state db", "error", err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "failed to close push broker client", "error", err)
		}
	}
}
