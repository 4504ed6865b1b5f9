package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/segyhp/installment-tracker/internal/domain"
	customError "github.com/segyhp/installment-tracker/pkg/errors"
)

const planFileExt = ".json"

// LoadErrorHandler is told about plan files that List had to skip.
type LoadErrorHandler func(file string, err error)

type filePlanRepository struct {
	dir         string
	mu          sync.RWMutex
	onLoadError LoadErrorHandler
}

// NewFilePlanRepository stores each plan as <dir>/<plan_id>.json.
// onLoadError may be nil.
func NewFilePlanRepository(dir string, onLoadError LoadErrorHandler) PlanRepository {
	return &filePlanRepository{dir: dir, onLoadError: onLoadError}
}

func (r *filePlanRepository) path(planID string) (string, error) {
	if planID == "" || strings.ContainsAny(planID, `/\`) || planID == "." || planID == ".." {
		return "", customError.NewValidationError("plan id %q cannot be used as a file name", planID)
	}
	return filepath.Join(r.dir, planID+planFileExt), nil
}

func (r *filePlanRepository) Save(ctx context.Context, plan *domain.InstallmentPlan) error {
	path, err := r.path(plan.ID())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(plan.Record(), "", "  ")
	if err != nil {
		return customError.WrapStorageError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return customError.WrapStorageError(err)
	}

	// Write to a temp file and rename so a crash never leaves a half-written plan.
	tmp, err := os.CreateTemp(r.dir, "."+plan.ID()+"-*.tmp")
	if err != nil {
		return customError.WrapStorageError(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return customError.WrapStorageError(err)
	}
	if err := tmp.Close(); err != nil {
		return customError.WrapStorageError(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return customError.WrapStorageError(err)
	}
	return nil
}

func (r *filePlanRepository) GetByID(ctx context.Context, planID string) (*domain.InstallmentPlan, error) {
	path, err := r.path(planID)
	if err != nil {
		return nil, customError.WrapPlanNotFound(planID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	plan, err := readPlanFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, customError.WrapPlanNotFound(planID)
	}
	return plan, err
}

func (r *filePlanRepository) Exists(ctx context.Context, planID string) (bool, error) {
	path, err := r.path(planID)
	if err != nil {
		return false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, customError.WrapStorageError(err)
	}
}

// List loads every plan file in the directory. A missing directory is an empty
// collection. Unreadable or invalid files are skipped and reported to onLoadError.
func (r *filePlanRepository) List(ctx context.Context) (map[string]*domain.InstallmentPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plans := make(map[string]*domain.InstallmentPlan)

	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return plans, nil
	}
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != planFileExt {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		plan, err := readPlanFile(filepath.Join(r.dir, name))
		if err != nil {
			if r.onLoadError != nil {
				r.onLoadError(name, err)
			}
			continue
		}
		plans[plan.ID()] = plan
	}

	return plans, nil
}

func (r *filePlanRepository) Delete(ctx context.Context, planID string) error {
	path, err := r.path(planID)
	if err != nil {
		return customError.WrapPlanNotFound(planID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return customError.WrapPlanNotFound(planID)
	}
	if err != nil {
		return customError.WrapStorageError(err)
	}
	return nil
}

// readPlanFile decodes a plan file. The file name stem is the plan id; a record
// carrying a different id is rejected.
func readPlanFile(path string) (*domain.InstallmentPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, customError.WrapStorageError(err)
	}

	var rec domain.PlanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, customError.NewValidationError("decode %s: %v", filepath.Base(path), err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), planFileExt)
	switch rec.PlanID {
	case "":
		rec.PlanID = stem
	case stem:
	default:
		return nil, customError.NewValidationError("%s holds plan %q", filepath.Base(path), rec.PlanID)
	}

	plan, err := domain.RestorePlan(rec)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", filepath.Base(path), err)
	}
	return plan, nil
}
