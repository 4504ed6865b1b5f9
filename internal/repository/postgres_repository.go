package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/installment-tracker/internal/domain"
	customError "github.com/segyhp/installment-tracker/pkg/errors"
)

// Schema creates the tables used by the postgres repository.
const Schema = `
CREATE TABLE IF NOT EXISTS plans (
	plan_id        TEXT PRIMARY KEY,
	merchant_name  TEXT NOT NULL,
	total_amount   NUMERIC(14, 2) NOT NULL CHECK (total_amount > 0),
	purchase_date  DATE NOT NULL,
	frequency      TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS plan_installments (
	id         UUID PRIMARY KEY,
	plan_id    TEXT NOT NULL REFERENCES plans (plan_id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	amount     NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
	due_date   DATE NOT NULL,
	paid_date  DATE,
	UNIQUE (plan_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_plan_installments_due_date ON plan_installments (due_date) WHERE paid_date IS NULL;
`

type planRow struct {
	PlanID       string          `db:"plan_id"`
	MerchantName string          `db:"merchant_name"`
	TotalAmount  decimal.Decimal `db:"total_amount"`
	PurchaseDate time.Time       `db:"purchase_date"`
	Frequency    string          `db:"frequency"`
}

type installmentRow struct {
	ID       uuid.UUID       `db:"id"`
	PlanID   string          `db:"plan_id"`
	Idx      int             `db:"idx"`
	Amount   decimal.Decimal `db:"amount"`
	DueDate  time.Time       `db:"due_date"`
	PaidDate sql.NullTime    `db:"paid_date"`
}

type postgresPlanRepository struct {
	db *sqlx.DB
}

func NewPostgresPlanRepository(db *sqlx.DB) PlanRepository {
	return &postgresPlanRepository{db: db}
}

// EnsureSchema creates the plan tables when they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return customError.WrapStorageError(err)
	}
	return nil
}

func (r *postgresPlanRepository) Save(ctx context.Context, plan *domain.InstallmentPlan) error {
	rec := plan.Record()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return customError.WrapStorageError(err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO plans (plan_id, merchant_name, total_amount, purchase_date, frequency)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (plan_id) DO UPDATE
		SET merchant_name = EXCLUDED.merchant_name,
			total_amount = EXCLUDED.total_amount,
			purchase_date = EXCLUDED.purchase_date,
			frequency = EXCLUDED.frequency,
			updated_at = NOW()
	`
	if _, err = tx.ExecContext(ctx, upsert,
		rec.PlanID,
		rec.MerchantName,
		rec.TotalAmount,
		rec.PurchaseDate.Time,
		string(rec.Frequency),
	); err != nil {
		return customError.WrapStorageError(err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM plan_installments WHERE plan_id = $1`, rec.PlanID); err != nil {
		return customError.WrapStorageError(err)
	}

	insert := `
		INSERT INTO plan_installments (id, plan_id, idx, amount, due_date, paid_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, inst := range rec.Installments {
		var paid sql.NullTime
		if inst.PaidDate != nil {
			paid = sql.NullTime{Time: inst.PaidDate.Time, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, insert,
			uuid.New(),
			rec.PlanID,
			inst.Index,
			inst.Amount,
			inst.DueDate.Time,
			paid,
		); err != nil {
			return customError.WrapStorageError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return customError.WrapStorageError(err)
	}
	return nil
}

func (r *postgresPlanRepository) GetByID(ctx context.Context, planID string) (*domain.InstallmentPlan, error) {
	query := `
		SELECT plan_id, merchant_name, total_amount, purchase_date, frequency
		FROM plans
		WHERE plan_id = $1
	`

	var row planRow
	if err := r.db.GetContext(ctx, &row, query, planID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPlanNotFound(planID)
		}
		return nil, customError.WrapStorageError(err)
	}

	var installments []installmentRow
	err := r.db.SelectContext(ctx, &installments, `
		SELECT id, plan_id, idx, amount, due_date, paid_date
		FROM plan_installments
		WHERE plan_id = $1
		ORDER BY due_date, idx
	`, planID)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}

	return toPlan(row, installments)
}

func (r *postgresPlanRepository) Exists(ctx context.Context, planID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM plans WHERE plan_id = $1)`, planID)
	if err != nil {
		return false, customError.WrapStorageError(err)
	}
	return exists, nil
}

func (r *postgresPlanRepository) List(ctx context.Context) (map[string]*domain.InstallmentPlan, error) {
	var rows []planRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT plan_id, merchant_name, total_amount, purchase_date, frequency
		FROM plans
		ORDER BY plan_id
	`)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}

	var installments []installmentRow
	err = r.db.SelectContext(ctx, &installments, `
		SELECT id, plan_id, idx, amount, due_date, paid_date
		FROM plan_installments
		ORDER BY plan_id, due_date, idx
	`)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}

	byPlan := make(map[string][]installmentRow, len(rows))
	for _, inst := range installments {
		byPlan[inst.PlanID] = append(byPlan[inst.PlanID], inst)
	}

	plans := make(map[string]*domain.InstallmentPlan, len(rows))
	for _, row := range rows {
		plan, err := toPlan(row, byPlan[row.PlanID])
		if err != nil {
			return nil, err
		}
		plans[row.PlanID] = plan
	}
	return plans, nil
}

func (r *postgresPlanRepository) Delete(ctx context.Context, planID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE plan_id = $1`, planID)
	if err != nil {
		return customError.WrapStorageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return customError.WrapStorageError(err)
	}
	if n == 0 {
		return customError.WrapPlanNotFound(planID)
	}
	return nil
}

func toPlan(row planRow, installments []installmentRow) (*domain.InstallmentPlan, error) {
	rec := domain.PlanRecord{
		PlanID:       row.PlanID,
		MerchantName: row.MerchantName,
		TotalAmount:  row.TotalAmount,
		PurchaseDate: domain.NewDate(row.PurchaseDate),
		Frequency:    domain.Frequency(row.Frequency),
		Installments: make([]domain.InstallmentRecord, len(installments)),
	}
	for i, inst := range installments {
		ir := domain.InstallmentRecord{
			Index:   inst.Idx,
			Amount:  inst.Amount,
			DueDate: domain.NewDate(inst.DueDate),
		}
		if inst.PaidDate.Valid {
			paid := domain.NewDate(inst.PaidDate.Time)
			ir.PaidDate = &paid
		}
		rec.Installments[i] = ir
	}
	return domain.RestorePlan(rec)
}
