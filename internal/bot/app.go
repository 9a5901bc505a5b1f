// Package bot initializes and runs the application: configuration, database,
// migrations, the Telegram transport and the dispatch router, with graceful
// shutdown on OS signals.
package bot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/packsmith/internal/bot/config"
	"github.com/dmitrijs2005/packsmith/internal/bot/conversation"
	"github.com/dmitrijs2005/packsmith/internal/bot/quota"
	"github.com/dmitrijs2005/packsmith/internal/bot/render"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/packsmith/internal/bot/router"
	"github.com/dmitrijs2005/packsmith/internal/bot/services"
	"github.com/dmitrijs2005/packsmith/internal/bot/telegram"
	"github.com/dmitrijs2005/packsmith/internal/logging"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	transport *telegram.Transport
}

func NewApp(cfg *config.Config) (*App, error) {
	handler := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(handler)

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is not configured")
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	transport, err := telegram.NewTransport(cfg.BotToken, logger)
	if err != nil {
		return nil, fmt.Errorf("telegram init error: %w", err)
	}
	client := transport.Client()

	policy := quota.NewPolicy(cfg)
	userService := services.NewUserService(db, rm, cfg)
	packService := services.NewPackService(db, rm, cfg, client, policy, logger)
	paymentService := services.NewPaymentService(db, rm, cfg, packService, userService, logger)
	adminService := services.NewAdminService(db, rm, cfg, logger)
	backupService := services.NewBackupService(db, rm, cfg, logger)

	r := router.NewRouter(cfg, logger, conversation.NewEngine(), policy,
		userService, packService, paymentService, adminService, backupService,
		render.NewRenderer(), client, client)
	transport.SetHandler(r)

	return &App{config: cfg, logger: logger, db: db, transport: transport}, nil
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

	app.logger.Info(ctx, "starting app")
	app.initSignalHandler(cancelFunc)

	app.transport.Run(ctx)

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "app stopped")
}
