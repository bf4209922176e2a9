package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccountRole represents the available roles for the RBAC system. ADMIN is the
// single privileged protocol role allowed to tune protocol parameters.
type AccountRole string

const (
	RoleAdmin AccountRole = "ADMIN"
	RoleUser  AccountRole = "USER"
)

// Account is an API caller bound to a payment-ledger address. The address is
// what the settlement engine keys its ledgers on.
type Account struct {
	ID           string      `db:"id" json:"id"`
	Address      string      `db:"address" json:"address"`
	Email        string      `db:"email" json:"email"`
	PasswordHash string      `db:"password_hash" json:"-"`
	Role         AccountRole `db:"role" json:"role"`
	Active       bool        `db:"active" json:"active"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	AccountID string      `json:"account_id"`
	Address   string      `json:"address"`
	Role      AccountRole `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest is the credential payload for token issuance.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	Account     Account   `json:"account"`
}

// RegisterRequest creates a USER account bound to a ledger address.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Address  string `json:"address" validate:"required"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
