package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/installment-tracker/internal/repository"
	"github.com/segyhp/installment-tracker/pkg/response"
)

// readinessPlanID is looked up on every readiness check. It never names a
// stored plan; the lookup only has to reach the store.
const readinessPlanID = "readiness-check"

type HealthHandler struct {
	backend string
	store   repository.PlanRepository
	db      *sqlx.DB
	redis   *redis.Client
}

// NewHealthHandler reports on the plan store for the named backend. db and redis
// are optional; nil ones are reported as "disabled".
func NewHealthHandler(backend string, store repository.PlanRepository, db *sqlx.DB, redis *redis.Client) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		store:   store,
		db:      db,
		redis:   redis,
	}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Storage   string            `json:"storage_backend"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (h *HealthHandler) newStatus() HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Storage:   h.backend,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}
}

// Health performs a basic health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.newStatus())
}

// Ready checks that the plan store answers, plus database and redis connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.newStatus()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status.check("storage", func() error {
		_, err := h.store.Exists(ctx, readinessPlanID)
		return err
	})

	if h.db == nil {
		status.Checks["database"] = "disabled"
	} else {
		status.check("database", func() error { return h.db.PingContext(ctx) })
	}

	if h.redis == nil {
		status.Checks["redis"] = "disabled"
	} else {
		status.check("redis", func() error { return h.redis.Ping(ctx).Err() })
	}

	if status.Status == "error" {
		response.JSON(w, http.StatusServiceUnavailable, status)
		return
	}

	response.Success(w, status)
}

func (s *HealthStatus) check(name string, ping func() error) {
	if err := ping(); err != nil {
		s.Status = "error"
		s.Checks[name] = "failed: " + err.Error()
		return
	}
	s.Checks[name] = "ok"
}
