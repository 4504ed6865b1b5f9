package repository

import (
	"context"
	"time"

	"github.com/segyhp/installment-tracker/internal/domain"
)

// PlanRepository persists installment plans keyed by plan id.
type PlanRepository interface {
	// Save inserts the plan or replaces the stored version
	Save(ctx context.Context, plan *domain.InstallmentPlan) error

	// GetByID retrieves a plan, failing with a not found error when absent
	GetByID(ctx context.Context, planID string) (*domain.InstallmentPlan, error)

	// Exists reports whether a plan with the id is stored
	Exists(ctx context.Context, planID string) (bool, error)

	// List returns every stored plan keyed by id
	List(ctx context.Context) (map[string]*domain.InstallmentPlan, error)

	// Delete removes a plan, failing with a not found error when absent
	Delete(ctx context.Context, planID string) error
}

// Cache is the key/value store used by CachedPlanRepository.
// Get returns ErrCacheMiss when the key is absent.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
