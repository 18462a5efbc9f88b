package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-blog-api/app/db"
	"github.com/FACorreiaa/go-blog-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blog-api/config"
	"github.com/FACorreiaa/go-blog-api/internal/api/auth"
	"github.com/FACorreiaa/go-blog-api/internal/api/password"
	"github.com/FACorreiaa/go-blog-api/internal/api/token"
	"github.com/FACorreiaa/go-blog-api/internal/api/user"
	"github.com/FACorreiaa/go-blog-api/internal/notification"
	"github.com/FACorreiaa/go-blog-api/internal/router"
)

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	Logger          *slog.Logger
	Pool            *pgxpool.Pool
	DatabaseURL     string
	Dispatcher      *notification.Dispatcher
	AuthHandler     *auth.HandlerImpl
	PasswordHandler *password.HandlerImpl
	UserHandler     *user.HandlerImpl
}

// NewContainer initializes and returns a new dependency container
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	mailer, err := notification.NewMailer(cfg.Mail, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("configuring mailer: %w", err)
	}
	m := metrics.Get()
	dispatcher := notification.NewDispatcher(mailer, cfg.Mail, logger, m)

	// Repositories
	userRepo := user.NewPostgresUserRepo(pool, logger)
	tokenRepo := token.NewPostgresTokenRepo(pool, logger)

	// Services
	tokenService := token.NewTokenService(tokenRepo, cfg.Tokens, cfg.Client.Domain, logger, m)
	authService := auth.NewAuthService(userRepo, tokenService, dispatcher, cfg, logger, m)
	passwordService := password.NewPasswordService(userRepo, tokenService, dispatcher, cfg.Auth, logger)
	userService := user.NewUserService(userRepo, logger)

	return &Container{
		Config:          cfg,
		Logger:          logger,
		Pool:            pool,
		DatabaseURL:     dbConfig.ConnectionURL,
		Dispatcher:      dispatcher,
		AuthHandler:     auth.NewAuthHandlerImpl(authService, logger),
		PasswordHandler: password.NewHandlerImpl(passwordService, logger),
		UserHandler:     user.NewHandlerImpl(userService, logger),
	}, nil
}

// RouterConfig assembles the route table's dependencies.
func (c *Container) RouterConfig() *router.Config {
	return &router.Config{
		AuthHandler:     c.AuthHandler,
		PasswordHandler: c.PasswordHandler,
		UserHandler:     c.UserHandler,
		JWT:             c.Config.JWT,
		AllowedOrigins:  c.Config.Client.AllowedOrigins,
		RateLimit:       c.Config.RateLimit,
		Logger:          c.Logger,
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations() error {
	return database.RunMigrations(c.DatabaseURL, c.Logger)
}
