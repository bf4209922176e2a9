package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/attendfi/attendfi-api/internal/models"
)

// AccountRepository manages persistence for API accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs an AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByEmail fetches an account by email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	const query = `SELECT id, address, email, password_hash, role, active, created_at, updated_at
        FROM accounts WHERE LOWER(email) = LOWER($1)`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByID fetches an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	const query = `SELECT id, address, email, password_hash, role, active, created_at, updated_at
        FROM accounts WHERE id = $1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// ExistsByEmailOrAddress reports whether either credential key is taken.
func (r *AccountRepository) ExistsByEmailOrAddress(ctx context.Context, email, address string) (bool, error) {
	const query = `SELECT 1 FROM accounts WHERE LOWER(email) = LOWER($1) OR address = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, email, address); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check account: %w", err)
	}
	return true, nil
}

// Create inserts a new account record.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Email = strings.ToLower(account.Email)
	const query = `INSERT INTO accounts (id, address, email, password_hash, role, active, created_at, updated_at)
        VALUES (:id, :address, :email, :password_hash, :role, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}
