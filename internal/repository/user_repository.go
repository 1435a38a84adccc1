package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByToken resolves an API token to its account. A missing token returns
// nil without an error.
func (r *UserRepository) FindByToken(ctx context.Context, token string) (*models.UserAccount, error) {
	const query = `
SELECT id, email, plan_tier, credit_balance, created_at, updated_at
FROM users WHERE api_token = ?`
	row := r.db.QueryRowContext(ctx, query, token)
	var u models.UserAccount
	var tier string
	if err := row.Scan(&u.ID, &u.Email, &tier, &u.CreditBalance, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.PlanTier = models.PlanTier(tier)
	return &u, nil
}

// ConsumeCredits deducts amount from the balance in a single conditional
// update so two concurrent runs cannot both spend the same credit. Returns
// false when the balance was insufficient.
func (r *UserRepository) ConsumeCredits(ctx context.Context, userID int64, amount int) (bool, error) {
	const query = `
UPDATE users SET credit_balance = credit_balance - ?, updated_at = NOW()
WHERE id = ? AND credit_balance >= ?`
	res, err := r.db.ExecContext(ctx, query, amount, userID, amount)
	if err != nil {
		return false, fmt.Errorf("consume credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credits rows affected: %w", err)
	}
	return affected > 0, nil
}
