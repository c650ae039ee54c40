package main

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	users "github.com/pyramidhq/go-users"
	"github.com/pyramidhq/go-users/cmd/server/config"
)

type App struct {
	config *gconfig.Container[*config.BaseConfig]
	bunDB  *bun.DB
	auth   users.Authenticator
	repo   users.RepositoryManager
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("users"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	if err := WithRoutes(ctx, app); err != nil {
		panic(err)
	}

	go app.srv.Serve(app.Config().GetServer().GetAddr())

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.Config().GetPersistence().GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*users.User)(nil))
	persistence.RegisterModel((*users.RoleRecord)(nil))
	persistence.RegisterModel((*users.UserToRole)(nil))

	client, err := persistence.New(app.Config().GetPersistence(), db, sqlitedialect.New())
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(users.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.bunDB = client.DB()
	app.repo = users.NewRepositoryManager(client.DB())

	if err := app.repo.Validate(); err != nil {
		return err
	}

	// seed the closed role set so role links always have a target row
	if err := app.repo.Roles().EnsureDefaults(ctx); err != nil {
		return err
	}

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
			AppName:       "go-users",
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	app.srv = srv
	return nil
}

func WithRoutes(ctx context.Context, app *App) error {
	authCfg := app.Config().GetAuth()

	userProvider := users.NewUserProvider(users.NewUserStore(app.repo.Users()))
	userProvider.WithLogger(app.GetLogger("auth:prv"))

	authenticator := users.NewAuthenticator(userProvider, authCfg)
	authenticator.WithLogger(app.GetLogger("auth"))

	app.auth = authenticator

	policy := users.NewAccessPolicy(
		users.DefaultPublicPatterns(),
		users.PolicyRule{
			Method:  "DELETE",
			Pattern: "/api/users",
			Class:   users.RoleRestricted,
			Role:    users.RoleAdmin,
		},
	)

	guard, err := users.NewHTTPGuard(authenticator, authCfg, policy)
	if err != nil {
		return err
	}
	guard.Logger = app.GetLogger("auth:http")

	r := app.srv.Router()

	r.Use(guard.Authentication())
	r.Use(guard.Authorization())

	r.Get("/health", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]string{"status": "ok"})
	})

	users.RegisterAuthRoutes(r.Group("/api/auth"),
		func(c *users.AuthController) *users.AuthController {
			c.Repo = app.repo
			c.Auther = authenticator
			c.Config = authCfg
			c.Logger = app.GetLogger("auth:ctrl")
			return c
		},
	)

	users.RegisterUserRoutes(r.Group("/api/users"),
		func(c *users.UserController) *users.UserController {
			c.Repo = app.repo
			c.Config = authCfg
			c.Logger = app.GetLogger("users:ctrl")
			return c
		},
	)

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
