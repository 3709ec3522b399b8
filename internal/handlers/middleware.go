package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/auth"
	"chatapp-gateway/internal/jwt"
)

const userExistsTTL = 15 * time.Minute

type UserIDKeyType struct{}

// AllowCors answers preflight requests and echoes allowed origins back with
// credentials. Only "*" allows every origin; an empty list allows none.
func AllowCors(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[strings.ToLower(origin)]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserVerifier authenticates the request by bearer token or JWT cookie and
// passes the user id on in the context.
func (h *Handlers) UserVerifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.auth.Authenticate(auth.TokenFromRequest(r, false))
		if err != nil {
			h.fail(w, err)
			return
		}

		userFound, err := h.userExists(r.Context(), claims.UserID)
		if err != nil {
			h.fail(w, err)
			return
		}

		// the account was deleted while the token was still around
		if !userFound {
			http.SetCookie(w, jwt.ExpiredCookie())
			h.fail(w, apperror.Unauthenticated("User no longer exists"))
			return
		}

		renewed, err := h.auth.Renew(claims)
		if err != nil {
			h.sugar.Error(err)
		} else if renewed != nil {
			http.SetCookie(w, renewed)
		}

		ctx := context.WithValue(r.Context(), UserIDKeyType{}, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handlers) userExists(ctx context.Context, userID int64) (bool, error) {
	key := fmt.Sprintf("user_exists:%d", userID)

	value, err := h.cache.Get(ctx, key)
	if err != nil {
		h.sugar.Error(err)
		return false, apperror.Unavailable("reading user cache", err)
	}
	if value != "" {
		h.sugar.Debugf("User ID %d was found in cache", userID)
		return true, nil
	}

	found, err := h.users.UserExists(ctx, userID)
	if err != nil {
		return false, err
	}
	if !found {
		h.sugar.Debugf("User ID %d was not found in database", userID)
		return false, nil
	}

	if err := h.cache.Set(ctx, key, "y", userExistsTTL); err != nil {
		h.sugar.Error(err)
	} else {
		h.sugar.Debugf("User ID %d was found in database and was cached", userID)
	}
	return true, nil
}

func userIDFrom(r *http.Request) int64 {
	userID, _ := r.Context().Value(UserIDKeyType{}).(int64)
	return userID
}
