// Package auth registers users, logs them in and verifies their tokens.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/jwt"
	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/validator"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 12

// RenewAfter is how old a token gets before requests are handed a new one.
const RenewAfter = 15 * time.Minute

type UserStore interface {
	CreateUser(ctx context.Context, username string, email string, passwordHash []byte) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
}

type Service struct {
	users    UserStore
	signer   *jwt.Signer
	validate *validator.Validator
	sugar    *zap.SugaredLogger
	cost     int
}

func NewService(users UserStore, signer *jwt.Signer, validate *validator.Validator, sugar *zap.SugaredLogger) *Service {
	return &Service{
		users:    users,
		signer:   signer,
		validate: validate,
		sugar:    sugar,
		cost:     passwordCost,
	}
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,notblank,min=2,max=32,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
}

// Session is a signed in user. Cookie carries the same token for browsers.
type Session struct {
	User   models.User `json:"user"`
	Token  string      `json:"token"`
	Cookie http.Cookie `json:"-"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (Session, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := s.validate.Struct(input); err != nil {
		return Session{}, err
	}

	if err := s.ensureFree(ctx, input); err != nil {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return Session{}, apperror.Wrap(apperror.KindInternal, "hashing password", err)
	}

	user, err := s.users.CreateUser(ctx, input.Username, input.Email, hash)
	if err != nil {
		return Session{}, err
	}
	s.sugar.Debugf("User %d registered as %s", user.ID, user.Username)

	return s.session(user)
}

func (s *Service) ensureFree(ctx context.Context, input RegisterInput) error {
	_, err := s.users.FindUserByEmail(ctx, input.Email)
	if err == nil {
		return apperror.Conflict("An account with this email already exists")
	} else if !apperror.Is(err, apperror.KindNotFound) {
		return err
	}

	_, err = s.users.FindUserByUsername(ctx, input.Username)
	if err == nil {
		return apperror.Conflict("This username is already taken")
	} else if !apperror.Is(err, apperror.KindNotFound) {
		return err
	}
	return nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := s.validate.Struct(input); err != nil {
		return Session{}, err
	}

	user, err := s.users.FindUserByEmail(ctx, input.Email)
	if apperror.Is(err, apperror.KindNotFound) {
		return Session{}, apperror.Unauthenticated("Invalid email or password")
	} else if err != nil {
		return Session{}, err
	}

	err = bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(input.Password))
	if err != nil {
		s.sugar.Debug(err)
		return Session{}, apperror.Unauthenticated("Invalid email or password")
	}

	return s.session(user)
}

// Verify returns the user id a token was issued for.
func (s *Service) Verify(token string) (int64, error) {
	claims, err := s.Authenticate(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// Authenticate checks token and returns its claims.
func (s *Service) Authenticate(token string) (jwt.UserToken, error) {
	if token == "" {
		return jwt.UserToken{}, apperror.Unauthenticated("No token was provided")
	}

	claims, err := s.signer.VerifyToken(token)
	if err != nil {
		s.sugar.Debug(err)
		return jwt.UserToken{}, apperror.Wrap(apperror.KindAuthentication, "Invalid or expired token", err)
	}
	return claims, nil
}

// Renew issues a fresh cookie when claims are older than RenewAfter, and
// returns nil otherwise.
func (s *Service) Renew(claims jwt.UserToken) (*http.Cookie, error) {
	if claims.IssuedAt == nil || time.Since(claims.IssuedAt.Time) < RenewAfter {
		return nil, nil
	}

	_, cookie, err := s.signer.CreateToken(claims.UserID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "signing token", err)
	}
	return &cookie, nil
}

func (s *Service) session(user models.User) (Session, error) {
	token, cookie, err := s.signer.CreateToken(user.ID)
	if err != nil {
		return Session{}, apperror.Wrap(apperror.KindInternal, "signing token", err)
	}
	return Session{User: user, Token: token, Cookie: cookie}, nil
}
