package jwt

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "JWT"

type UserToken struct {
	UserID int64 `json:"userID,string"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS512 user tokens.
type Signer struct {
	secret   []byte
	lifetime time.Duration
	isHttps  bool
	now      func() time.Time
}

func NewSigner(secret string, lifetime time.Duration, isHttps bool) *Signer {
	return &Signer{
		secret:   []byte(secret),
		lifetime: lifetime,
		isHttps:  isHttps,
		now:      time.Now,
	}
}

// CreateToken signs a token for userID and returns it with the matching
// cookie.
func (s *Signer) CreateToken(userID int64) (string, http.Cookie, error) {
	currentTime := s.now().UTC()
	expirationDate := currentTime.Add(s.lifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, UserToken{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(expirationDate),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", http.Cookie{}, err
	}

	cookie := http.Cookie{
		Name:     CookieName,
		Value:    tokenString,
		Path:     "/",
		Expires:  expirationDate,
		HttpOnly: true,
		Secure:   s.isHttps,
		SameSite: http.SameSiteLaxMode,
	}

	return tokenString, cookie, nil
}

func (s *Signer) VerifyToken(tokenString string) (UserToken, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserToken{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return UserToken{}, err
	}

	claims, ok := token.Claims.(*UserToken)
	if !ok || claims.UserID == 0 {
		return UserToken{}, errors.New("invalid token")
	}
	return *claims, nil
}

// ExpiredCookie clears the token cookie on the client.
func ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	}
}
