package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/segyhp/installment-tracker/internal/domain"
)

type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Save(ctx context.Context, plan *domain.InstallmentPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) GetByID(ctx context.Context, planID string) (*domain.InstallmentPlan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InstallmentPlan), args.Error(1)
}

func (m *MockPlanRepository) Exists(ctx context.Context, planID string) (bool, error) {
	args := m.Called(ctx, planID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPlanRepository) List(ctx context.Context) (map[string]*domain.InstallmentPlan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.InstallmentPlan), args.Error(1)
}

func (m *MockPlanRepository) Delete(ctx context.Context, planID string) error {
	args := m.Called(ctx, planID)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Del(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
