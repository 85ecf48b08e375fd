package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/availability-service/internal/availability"
)

type RouterConfig struct {
	Commands *availability.CommandHandler
	Queries  *availability.QueryService
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability endpoints
	r.Get("/availability", getAvailabilityHandler(cfg.Queries))
	r.Post("/users/{userID}/availability", createAvailabilityHandler(cfg.Commands))
	r.Put("/users/{userID}/availability", updateAvailabilityHandler(cfg.Commands))
	r.Delete("/users/{userID}/availability/{availableAt}", deleteAvailabilityHandler(cfg.Commands))
	r.Get("/users/{userID}/aggregate", getAggregateHandler(cfg.Commands))

	return r
}
