package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appMiddleware "github.com/FACorreiaa/go-blog-api/app/middleware"
	"github.com/FACorreiaa/go-blog-api/config"
	"github.com/FACorreiaa/go-blog-api/internal/api/auth"
	"github.com/FACorreiaa/go-blog-api/internal/api/password"
	"github.com/FACorreiaa/go-blog-api/internal/api/user"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler     auth.Handler
	PasswordHandler password.Handler
	UserHandler     user.Handler
	JWT             config.JWTConfig
	AllowedOrigins  []string
	RateLimit       config.RateLimitConfig
	Logger          *slog.Logger
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (request id, logging, recoverer) is applied in
// main.go before this router is mounted.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appMiddleware.SecurityHeaders)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	authenticate := auth.Authenticate(cfg.Logger, cfg.JWT)

	r.Route("/api", func(r chi.Router) {
		r.Use(appMiddleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))

		// Public: account lifecycle
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/login", cfg.AuthHandler.Login)
			r.Get("/{userId}/verify/{token}", cfg.AuthHandler.VerifyAccount)
		})

		r.Route("/password", func(r chi.Router) {
			r.Post("/reset-password-link", cfg.PasswordHandler.SendResetLink)
			r.Get("/reset-password/{userId}/{token}", cfg.PasswordHandler.CheckResetLink)
			r.Post("/reset-password/{userId}/{token}", cfg.PasswordHandler.ResetPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/profile", cfg.UserHandler.GetUserProfile)
			r.Put("/profile", cfg.UserHandler.UpdateUserProfile)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin(cfg.Logger))
				r.Get("/", cfg.UserHandler.ListUsers)
				r.Get("/count", cfg.UserHandler.CountUsers)
			})
		})
	})

	return r
}
