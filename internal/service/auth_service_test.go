package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail   *models.User
	userByID      *models.User
	refreshTokens map[string]*models.RefreshToken
	resetTokens   map[string]*models.PasswordResetToken
	revokedUsers  []string
	auditLogs     []*models.AuditLog
	lastLogin     bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreatePasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	if m.resetTokens == nil {
		m.resetTokens = make(map[string]*models.PasswordResetToken)
	}
	m.resetTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindPasswordResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	rt, ok := m.resetTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) MarkPasswordResetTokenUsed(ctx context.Context, id string, usedAt time.Time) error {
	for _, token := range m.resetTokens {
		if token.ID == id {
			token.UsedAt = &usedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockResetNotifier struct {
	tokens []string
}

func (m *mockResetNotifier) NotifyPasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) {
	m.tokens = append(m.tokens, token)
}

func authTestConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		ResetTokenExpiry:   time.Hour,
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID: "u1", Email: "student@example.com", PasswordHash: string(password),
		Active: true, Role: models.RoleStudent,
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLogin)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID: "u1", Email: "student@example.com", PasswordHash: string(password), Active: false,
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID: "u1", Email: "student@example.com", PasswordHash: string(password), Active: true,
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	user := &models.User{ID: "u1", Email: "student@example.com", Active: true, Role: models.RoleStudent}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{
		"old-token": {ID: "rt1", UserID: user.ID, Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "old-token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["old-token"].Revoked)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	user := &models.User{ID: "u1", Active: true}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{
		"stale": {ID: "rt1", UserID: user.ID, Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceForgotPasswordIssuesToken(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID: "u1", Email: "student@example.com", Active: true,
	}}
	notifier := &mockResetNotifier{}
	svc := NewAuthService(repo, notifier, validator.New(), zap.NewNop(), authTestConfig())

	err := svc.ForgotPassword(context.Background(), models.ResetPasswordRequest{Email: "student@example.com"})
	require.NoError(t, err)
	require.Len(t, notifier.tokens, 1)
	assert.Contains(t, repo.resetTokens, notifier.tokens[0])
}

func TestAuthServiceForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	repo := &mockAuthRepo{}
	notifier := &mockResetNotifier{}
	svc := NewAuthService(repo, notifier, validator.New(), zap.NewNop(), authTestConfig())

	err := svc.ForgotPassword(context.Background(), models.ResetPasswordRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.Empty(t, notifier.tokens)
}

func TestAuthServiceResetPasswordConsumesToken(t *testing.T) {
	user := &models.User{ID: "u1", Email: "student@example.com", Active: true, PasswordHash: "old-hash"}
	repo := &mockAuthRepo{userByEmail: user, resetTokens: map[string]*models.PasswordResetToken{
		"reset-token": {ID: "pr1", UserID: user.ID, Token: "reset-token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	err := svc.ResetPassword(context.Background(), models.ConfirmResetPasswordRequest{
		Token: "reset-token", NewPassword: "brand-new",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "old-hash", user.PasswordHash)
	assert.NotNil(t, repo.resetTokens["reset-token"].UsedAt)
	assert.Contains(t, repo.revokedUsers, user.ID)

	err = svc.ResetPassword(context.Background(), models.ConfirmResetPasswordRequest{
		Token: "reset-token", NewPassword: "another-one",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
