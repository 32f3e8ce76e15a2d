package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/privadapp/gatepass/internal/api/handlers"
	"github.com/privadapp/gatepass/internal/api/middleware"
	"github.com/privadapp/gatepass/internal/auth"
	"github.com/privadapp/gatepass/internal/cache"
	"github.com/privadapp/gatepass/internal/config"
	"github.com/privadapp/gatepass/internal/credential"
	"github.com/privadapp/gatepass/internal/models"
	"github.com/privadapp/gatepass/internal/store"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	st    store.Store

	creds   *credential.Service
	authSvc *auth.Service
	authMW  *auth.Middleware
	limiter *middleware.RateLimiter
}

// NewRouter wires the services around the given store. db may be nil in
// tests; it is only consulted by the readiness probe.
func NewRouter(st store.Store, db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	sessions := auth.NewSessionStore(rdb)
	provider := auth.NewProvider(cfg.OIDC)

	return &Router{
		mux:     chi.NewRouter(),
		db:      db,
		redis:   rdb,
		cfg:     cfg,
		st:      st,
		creds:   credential.NewService(st),
		authSvc: auth.NewService(st, tokens, sessions, provider),
		authMW:  auth.NewMiddleware(tokens, sessions, provider, st, cfg.Auth.SecureCookies),
		limiter: middleware.NewRateLimiter(20, 40),
	}
}

// Close releases background resources owned by the router.
func (rt *Router) Close() {
	rt.limiter.Stop()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))
	r.Use(rt.limiter.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	authH := handlers.NewAuthHandler(rt.authSvc, rt.authMW)
	credH := handlers.NewCredentialHandler(rt.creds)
	accessH := handlers.NewAccessHandler(rt.creds)
	adminH := handlers.NewAdminHandler(rt.creds, rt.authSvc, rt.st, cache.NewCache(rt.redis))

	r.Route("/api/v1", func(r chi.Router) {
		// Login endpoints sit outside the authenticated group.
		r.Post("/auth/login", authH.Login)
		r.Get("/auth/oidc/login", authH.OIDCLogin)
		r.Get("/auth/oidc/callback", authH.OIDCCallback)

		r.Group(func(r chi.Router) {
			r.Use(rt.authMW.Authenticate)

			r.Post("/auth/logout", authH.Logout)
			r.Get("/auth/me", authH.Me)
			r.Post("/auth/role", authH.SelectRole)

			r.Route("/credentials", func(r chi.Router) {
				r.Use(rt.authMW.RequireRole(models.RoleResident, models.RoleAdmin))
				r.Post("/", credH.Issue)
				r.Get("/", credH.List)
			})

			r.Route("/access", func(r chi.Router) {
				r.Use(rt.authMW.RequireRole(models.RoleGuard, models.RoleAdmin))
				r.Post("/validate", accessH.Validate)
				r.Post("/confirm", accessH.Confirm)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(rt.authMW.RequireRole(models.RoleAdmin))
				r.Get("/users", adminH.ListUsers)
				r.Post("/users", adminH.CreateUser)
				r.Post("/users/{id}/reset-password", adminH.ResetPassword)
				r.Get("/events", adminH.Events)
				r.Get("/stats", adminH.Stats)
				r.Get("/credentials", adminH.Credentials)
			})
		})
	})

	return r
}
