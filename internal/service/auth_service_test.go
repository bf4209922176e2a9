package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/attendfi/attendfi-api/internal/models"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
)

type accountRepoStub struct {
	byEmail map[string]*models.Account
	byID    map[string]*models.Account
	taken   bool
	created []*models.Account
}

func (s *accountRepoStub) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	if account, ok := s.byEmail[email]; ok {
		return account, nil
	}
	return nil, sql.ErrNoRows
}

func (s *accountRepoStub) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if account, ok := s.byID[id]; ok {
		return account, nil
	}
	return nil, sql.ErrNoRows
}

func (s *accountRepoStub) ExistsByEmailOrAddress(ctx context.Context, email, address string) (bool, error) {
	return s.taken, nil
}

func (s *accountRepoStub) Create(ctx context.Context, account *models.Account) error {
	account.ID = "acc-1"
	s.created = append(s.created, account)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "attendfi-api",
		Audience:          []string{"attendfi"},
	}
}

func hashedAccount(password string) *models.Account {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &models.Account{
		ID:           "acc-1",
		Address:      "ALICE",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Active:       true,
	}
}

func TestLoginIssuesToken(t *testing.T) {
	account := hashedAccount("s3cret-pass")
	repo := &accountRepoStub{byEmail: map[string]*models.Account{account.Email: account}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: account.Email, Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "ALICE", claims.Address)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	account := hashedAccount("s3cret-pass")
	repo := &accountRepoStub{byEmail: map[string]*models.Account{account.Email: account}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: account.Email, Password: "nope-nope"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(&accountRepoStub{}, nil, zap.NewNop(), testAuthConfig())
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "whatever1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginInactiveAccount(t *testing.T) {
	account := hashedAccount("s3cret-pass")
	account.Active = false
	repo := &accountRepoStub{byEmail: map[string]*models.Account{account.Email: account}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: account.Email, Password: "s3cret-pass"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestRegisterCreatesUserAccount(t *testing.T) {
	repo := &accountRepoStub{}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	account, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "bob@example.com",
		Password: "longenough",
		Address:  "BOB",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, account.Role)
	assert.True(t, account.Active)
	require.Len(t, repo.created, 1)
	assert.NotEqual(t, "longenough", repo.created[0].PasswordHash)
}

func TestRegisterDuplicate(t *testing.T) {
	repo := &accountRepoStub{taken: true}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "bob@example.com",
		Password: "longenough",
		Address:  "BOB",
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(&accountRepoStub{}, nil, zap.NewNop(), testAuthConfig())
	_, err := svc.ValidateToken("not-a-jwt")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
