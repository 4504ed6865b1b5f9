package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/installment-tracker/pkg/errors"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres tests")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE plans CASCADE`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresPlanRepository_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresPlanRepository(db)
	ctx := context.Background()

	plan := newTestPlan(t, "acme_2024-01-01")
	now := utils.Date(2024, time.February, 3)
	require.NoError(t, plan.MarkInstallmentPaid(1, now, now))
	require.NoError(t, repo.Save(ctx, plan))

	got, err := repo.GetByID(ctx, plan.ID())
	require.NoError(t, err)
	assert.Equal(t, plan.MerchantName(), got.MerchantName())
	assert.True(t, plan.TotalAmount().Equal(got.TotalAmount()))
	assert.True(t, plan.PaidAmount().Equal(got.PaidAmount()))

	inst, err := got.Installment(1)
	require.NoError(t, err)
	paidOn, ok := inst.PaidDate()
	assert.True(t, ok)
	assert.True(t, now.Equal(paidOn))

	// Saving again replaces the installment rows.
	require.NoError(t, plan.MarkInstallmentUnpaid(1))
	require.NoError(t, repo.Save(ctx, plan))
	got, err = repo.GetByID(ctx, plan.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, got.UnpaidInstallmentCount())
}

func TestPostgresPlanRepository_ListExistsDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresPlanRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newTestPlan(t, "p1")))
	require.NoError(t, repo.Save(ctx, newTestPlan(t, "p2")))

	plans, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	assert.Equal(t, 3, plans["p2"].InstallmentCount())

	exists, err := repo.Exists(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.Delete(ctx, "p1"))
	err = repo.Delete(ctx, "p1")
	assert.True(t, customError.IsNotFound(err))

	_, err = repo.GetByID(ctx, "p1")
	assert.True(t, customError.IsNotFound(err))
}
