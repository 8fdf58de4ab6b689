package bot

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	corebootstrap "github.com/flx-it/assistbot/core/bootstrap"
	"github.com/flx-it/assistbot/core/logger"
	coretelegram "github.com/flx-it/assistbot/core/telegram"
	"log/slog"
	coremiddleware "github.com/flx-it/assistbot/core/telegram/middleware"
	tgrouter "github.com/flx-it/assistbot/core/telegram/router"

	"github.com/flx-it/assistbot/internal/ai"
	"github.com/flx-it/assistbot/internal/chat"
	"github.com/flx-it/assistbot/internal/config"
	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/httpapi"
	"github.com/flx-it/assistbot/internal/maintenance"
	"github.com/flx-it/assistbot/internal/payment"
	"github.com/flx-it/assistbot/internal/session"
	"github.com/flx-it/assistbot/internal/storage/postgres"
)

// Store is the storage surface the bot handlers depend on. *postgres.Store
// satisfies it in production; tests substitute an in-memory fake.
type Store interface {
	UserByTelegramID(ctx context.Context, telegramID int64) (domain.User, error)
	UserByUsername(ctx context.Context, username string) (domain.User, error)
	UserByID(ctx context.Context, id int64) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	BindTelegramID(ctx context.Context, userID, telegramID int64) error
	SetUserName(ctx context.Context, userID int64, firstname, lastname string) error
	SetTermsAccepted(ctx context.Context, userID int64) error
	SetUserModel(ctx context.Context, userID, modelID int64) error
	TouchUserActivity(ctx context.Context, userID int64, at time.Time) error
	DeleteUser(ctx context.Context, username string) error
	ListUsersByCompany(ctx context.Context, companyID int64, offset, limit int) ([]domain.User, int, error)
	AddPermission(ctx context.Context, userID int64, capability string) error
	RemovePermission(ctx context.Context, userID int64, capability string) error

	RoleByName(ctx context.Context, name string) (domain.Role, error)
	RoleByID(ctx context.Context, id int64) (domain.Role, error)
	CompanyByName(ctx context.Context, name string) (domain.Company, error)
	CompanyByID(ctx context.Context, id int64) (domain.Company, error)

	ModelByID(ctx context.Context, id int64) (domain.Model, error)
	ListModels(ctx context.Context) ([]domain.Model, error)

	WalletByCompany(ctx context.Context, companyID int64) (domain.Wallet, error)
	ChargeAndRecord(ctx context.Context, walletID int64, rec domain.Request) (domain.Wallet, error)

	Close() error
}

var _ Store = (*postgres.Store)(nil)

// App aggregates every service behind the bot and implements the shared
// runner's TelegramApp contract.
type App struct {
	cfg       *config.Config
	store     Store
	sessions  session.Store
	aiClient  ai.ChatClient
	images    ai.ImageClient
	payments  *payment.Service
	chat      *chat.Orchestrator
	artifacts *chat.ArtifactStore
	api       *httpapi.Server
	sweeper   *maintenance.Runner

	reg *coretelegram.Registry

	apiCancel context.CancelFunc
	apiDone   chan struct{}
}

// Bootstrap initializes infrastructure and wires all services. It satisfies
// the corecmd.Options.Bootstrap signature through cmd/assistbot.
func Bootstrap(cfg *config.Config) (*App, error) {
	res, err := corebootstrap.Run(corebootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	store := postgres.New(res.DB)

	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, seeder := range []corebootstrap.Seeder{modelSeeder()} {
		if err := seeder.Seed(seedCtx, store); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("bootstrap: seed failed: %w", err)
		}
	}

	openai := ai.NewOpenAI(ai.OpenAIOptions{
		Token:   cfg.OpenAI.Token,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
	})
	stability := ai.NewStability(ai.StabilityOptions{
		Token:   cfg.Stability.Token,
		BaseURL: cfg.Stability.BaseURL,
		Timeout: time.Duration(cfg.Stability.TimeoutSeconds) * time.Second,
	})

	artifacts, err := chat.NewArtifactStore(cfg.Artifacts.Dir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sessions := session.NewMemoryStore()
	tinkoff := payment.NewTinkoff(payment.TinkoffOptions{
		TerminalKey:     cfg.Tinkoff.TerminalKey,
		Password:        cfg.Tinkoff.Password,
		BaseURL:         cfg.Tinkoff.BaseURL,
		NotificationURL: cfg.Tinkoff.NotificationURL,
	})
	payments := payment.NewService(tinkoff, store)

	app := &App{
		cfg:       cfg,
		store:     store,
		sessions:  sessions,
		aiClient:  openai,
		images:    stability,
		payments:  payments,
		chat:      chat.NewOrchestrator(openai, store, sessions, artifacts),
		artifacts: artifacts,
	}
	app.api = httpapi.New(fmt.Sprintf("%s:%d", cfg.API.Listen, cfg.API.Port), payments)
	app.sweeper = maintenance.New(maintenance.Options{
		Sessions:          sessions,
		Artifacts:         artifacts,
		SessionTTL:        time.Duration(cfg.Session.IdleTTLMinutes) * time.Minute,
		ArtifactRetention: time.Duration(cfg.Artifacts.RetentionHrs) * time.Hour,
	})

	return app, nil
}

// TelegramRunOptions assembles the full bot wiring for the core runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.reg = reg
	a.registerCommands(reg)
	a.registerCallbacks(reg)
	reg.SetTextFallback(a.handleChatText)

	routes := tgrouter.CommandRoutes(reg, tgrouter.CommandRouteOptions{})
	routes = append(routes, tgrouter.TextRoutes(a, reg, tgrouter.TextOptions{})...)
	routes = append(routes, tgrouter.MediaRoutes(tgrouter.MediaOptions{
		Photo: a.handlePhoto,
		Voice: a.handleVoice,
	})...)
	routes = append(routes, tgrouter.CallbackRoute(reg, tgrouter.CallbackOptions{}))

	middlewares := coretelegram.DefaultMiddlewares(&a.cfg.Core, nil)
	middlewares = append(middlewares, coretelegram.Middleware{
		Name: "auth",
		Use:  a.AuthMiddleware(),
	})

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: middlewares,
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ coretelegram.Runtime) error {
	apiCtx, cancel := context.WithCancel(context.Background())
	a.apiCancel = cancel
	a.apiDone = make(chan struct{})
	go func() {
		defer close(a.apiDone)
		if err := a.api.Run(apiCtx); err != nil {
			logger.HTTP.Error("api stopped",
				slog.String("event", "http.run"),
				slog.String("err", err.Error()),
			)
		}
	}()

	a.sweeper.Start()
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	a.sweeper.Stop()
	if a.apiCancel != nil {
		a.apiCancel()
		<-a.apiDone
	}
	return a.store.Close()
}

// permissionGate wraps a handler with the capability check.
func (a *App) permissionGate(capability string, h tele.HandlerFunc) tele.HandlerFunc {
	opts := coremiddleware.PermissionOptions{
		Checker: a,
		OnDenied: func(c tele.Context) error {
			if _, ok := CurrentUser(c); !ok {
				return c.Send(txtNotRegistered)
			}
			return c.Send(txtNoPermission)
		},
	}
	return coremiddleware.RequirePermission(opts, capability)(h)
}
