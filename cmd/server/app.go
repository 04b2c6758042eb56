package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/platform/chat"
	"github.com/phrazzld/taskflow-api/internal/platform/mail"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/phrazzld/taskflow-api/internal/sweep"
)

const markNotifiedTimeout = 5 * time.Second

// notifiedActions maps delivered job kinds to the history action they announce.
var notifiedActions = map[notify.Kind]domain.HistoryAction{
	notify.KindCreated:   domain.HistoryActionCreated,
	notify.KindAssigned:  domain.HistoryActionUpdated,
	notify.KindUpdated:   domain.HistoryActionUpdated,
	notify.KindCompleted: domain.HistoryActionCompleted,
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	userStore       store.UserStore
	taskStore       store.TaskStore
	historyStore    store.HistoryStore
	commentStore    store.CommentStore
	categoryStore   store.CategoryStore
	resetTokenStore store.ResetTokenStore

	// Services
	jwtService      auth.JWTService
	taskService     service.TaskService
	categoryService service.CategoryService
	userService     service.UserService

	// Notification pipeline
	chatClient *chat.Client
	verifier   *chat.Verifier
	dispatcher *notify.Dispatcher
	scheduler  *sweep.Scheduler

	listCache *cache.Cache
}

// newApplication creates a new application instance with all dependencies initialized.
// Background workers are created here and started by Run.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.userStore = postgres.NewPostgresUserStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.historyStore = postgres.NewPostgresHistoryStore(db, logger)
	app.commentStore = postgres.NewPostgresCommentStore(db, logger)
	app.categoryStore = postgres.NewPostgresCategoryStore(db, logger)
	app.resetTokenStore = postgres.NewPostgresResetTokenStore(db, logger)

	if err := app.setupNotifications(); err != nil {
		return nil, err
	}
	if err := app.setupServices(); err != nil {
		return nil, err
	}
	app.setupScheduler()

	if cfg.Cache.Enabled {
		app.listCache = cache.New()
	}

	logger.Info("application initialized",
		slog.Bool("chat_delivery", app.chatClient.Configured()),
		slog.Bool("sweeps", cfg.Sweep.Enabled),
		slog.Bool("list_cache", cfg.Cache.Enabled))
	return app, nil
}

func (app *application) setupNotifications() error {
	var err error
	app.chatClient, err = chat.NewClient(app.config.Chat, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create chat client: %w", err)
	}
	app.verifier = chat.NewVerifier(app.config.Chat.SigningSecret, app.config.Chat.ReplayWindow)

	app.dispatcher, err = notify.NewDispatcher(
		app.chatClient,
		notify.NewRenderer(app.config.Server.FrontendURL),
		notify.DispatcherConfig{
			Workers:          app.config.Dispatcher.Workers,
			QueueSize:        app.config.Dispatcher.QueueSize,
			BatchConcurrency: app.config.Dispatcher.BatchConcurrency,
			Policies:         notify.PoliciesFromConfig(app.config.Dispatcher),
		},
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification dispatcher: %w", err)
	}
	app.dispatcher.OnDone(app.markNotified)
	return nil
}

// markNotified flags the announced history rows once a task job is delivered.
func (app *application) markNotified(job notify.Job, outcome notify.Outcome, _ error) {
	if outcome != notify.OutcomeDelivered || job.Task == nil {
		return
	}
	action, ok := notifiedActions[job.Kind]
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), markNotifiedTimeout)
	defer cancel()
	if err := app.historyStore.MarkNotified(ctx, job.Task.ID, action); err != nil {
		app.logger.Warn("failed to mark history notified",
			slog.String("task_id", job.Task.ID.String()),
			slog.String("action", string(action)),
			slog.String("error", redact.Error(err)))
	}
}

func (app *application) setupServices() error {
	var err error
	app.taskService, err = service.NewTaskService(service.TaskServiceDeps{
		DB:         app.db,
		Tasks:      app.taskStore,
		History:    app.historyStore,
		Comments:   app.commentStore,
		Categories: app.categoryStore,
		Users:      app.userStore,
		Notifier:   app.dispatcher,
		Channel:    app.config.Chat.DefaultChannel,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}

	app.categoryService, err = service.NewCategoryService(app.db, app.categoryStore, app.taskStore, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create category service: %w", err)
	}

	app.userService, err = service.NewUserService(service.UserServiceDeps{
		DB:            app.db,
		Users:         app.userStore,
		ResetTokens:   app.resetTokenStore,
		Hasher:        auth.NewBcryptHasher(app.config.Auth.BCryptCost),
		Mailer:        mail.New(app.config.Mail, app.logger),
		ResetTokenTTL: app.config.Auth.ResetTokenLifetime,
		FrontendURL:   app.config.Server.FrontendURL,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create user service: %w", err)
	}
	return nil
}

// setupScheduler registers the sweeps. When sweeps are disabled they are
// still registered without a schedule so operators can trigger them.
func (app *application) setupScheduler() {
	cfg := app.config.Sweep
	app.scheduler = sweep.NewScheduler(app.logger)

	dueDate := sweep.NewDueDateSweep(app.taskStore, app.userStore, app.dispatcher, cfg.ReminderLimit, app.logger)
	summary := sweep.NewDailySummarySweep(app.taskStore, app.userStore, app.dispatcher, app.logger)
	retention := sweep.NewRetentionSweep(
		app.db,
		app.taskStore,
		app.historyStore,
		app.resetTokenStore,
		app.dispatcher,
		sweep.RetentionConfig{
			ArchiveAfter: time.Duration(cfg.ArchiveAfterDays) * 24 * time.Hour,
			KeepHistory:  time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour,
			RetryDelay:   cfg.RetentionRetryDelay,
			OpsChannel:   app.config.Chat.OpsChannel,
		},
		app.logger,
	)

	schedule := func(s sweep.Schedule) sweep.Schedule {
		if !cfg.Enabled {
			return nil
		}
		return s
	}

	app.scheduler.Register(sweep.KindDueDate, schedule(sweep.Hourly()), func(ctx context.Context) error {
		_, err := dueDate.Run(ctx)
		return err
	})
	app.scheduler.Register(sweep.KindDailySummary, schedule(sweep.DailyAt(cfg.SummaryHour)), func(ctx context.Context) error {
		_, err := summary.Run(ctx)
		return err
	})
	app.scheduler.Register(sweep.KindRetention, schedule(sweep.DailyAt(cfg.RetentionHour)), func(ctx context.Context) error {
		_, err := retention.Run(ctx)
		return err
	})
}

// Run starts the background workers and the HTTP server and blocks until ctx
// is cancelled or the server fails.
func (app *application) Run(ctx context.Context) error {
	app.dispatcher.Start()
	app.scheduler.Start()

	router := app.setupRouter()
	serveErr := app.startHTTPServer(ctx, router)

	cleanupErr := app.cleanup()
	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	return cleanupErr
}

// cleanup stops the scheduler before the dispatcher so in-flight sweeps can
// still submit, then closes the database.
func (app *application) cleanup() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if app.scheduler != nil {
		if err := app.scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	if app.dispatcher != nil {
		if err := app.dispatcher.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop dispatcher: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		app.logger.Error("shutdown incomplete", slog.String("error", redact.Error(err)))
		return err
	}
	app.logger.Info("application shutdown completed")
	return nil
}
