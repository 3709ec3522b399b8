package auth

import (
	"context"
	"testing"
	"time"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/database"
	"chatapp-gateway/internal/jwt"
	"chatapp-gateway/internal/snowflake"
	"chatapp-gateway/internal/store"
	"chatapp-gateway/internal/validator"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	s := NewService(store.New(db, node), jwt.NewSigner("0123456789abcdef0123", time.Hour, false), validator.New(), zap.NewNop().Sugar())
	s.cost = bcrypt.MinCost
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	registered, err := s.Register(ctx, RegisterInput{Username: " alice ", Email: "Alice@Example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice", registered.User.Username)
	assert.Equal(t, "alice@example.com", registered.User.Email)
	assert.NotEmpty(t, registered.Token)

	userID, err := s.Verify(registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, userID)

	session, err := s.Login(ctx, LoginInput{Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, session.User.ID)
	assert.Equal(t, session.Token, session.Cookie.Value)
}

func TestRegisterConflicts(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	_, err := s.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input RegisterInput
		kind  apperror.Kind
	}{
		{name: "same email", input: RegisterInput{Username: "alice2", Email: "ALICE@example.com", Password: "hunter22"}, kind: apperror.KindConflict},
		{name: "same username", input: RegisterInput{Username: "alice", Email: "other@example.com", Password: "hunter22"}, kind: apperror.KindConflict},
		{name: "invalid input", input: RegisterInput{Username: "b", Email: "nope", Password: "123"}, kind: apperror.KindBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Register(ctx, tc.input)
			assert.Equal(t, tc.kind, apperror.KindOf(err))
		})
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	_, err := s.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = s.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))

	_, err = s.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "hunter22"})
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	s := newTestService(t)

	_, err := s.Verify("")
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))

	_, err = s.Verify("garbage")
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))
}

func TestRenew(t *testing.T) {
	s := newTestService(t)

	fresh, err := s.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	claims, err := s.Authenticate(fresh.Token)
	require.NoError(t, err)

	cookie, err := s.Renew(claims)
	require.NoError(t, err)
	assert.Nil(t, cookie)

	claims.IssuedAt = jwtlib.NewNumericDate(time.Now().Add(-RenewAfter - time.Minute))
	cookie, err = s.Renew(claims)
	require.NoError(t, err)
	require.NotNil(t, cookie)
	assert.Equal(t, jwt.CookieName, cookie.Name)

	userID, err := s.Verify(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, userID)
}
