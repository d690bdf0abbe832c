package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

type userIDKey struct{}

// ErrUnauthorized: запрос без валидной идентификации пользователя.
var ErrUnauthorized = errors.New("unauthorized")

// HeaderUserID используется в dev-режиме, когда секрет не задан.
const HeaderUserID = "X-User-ID"

// SignUserToken возвращает токен вида <uid>.<hex(hmac-sha256(secret, uid))>.
func SignUserToken(secret, userID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(userID))
	return userID + "." + hex.EncodeToString(h.Sum(nil))
}

// VerifyUserToken проверяет подпись токена и возвращает идентификатор пользователя.
func VerifyUserToken(secret, token string) (string, error) {
	idx := strings.LastIndexByte(token, '.')
	if idx <= 0 || idx == len(token)-1 {
		return "", ErrUnauthorized
	}
	userID, sig := token[:idx], token[idx+1:]
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return "", ErrUnauthorized
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(userID))
	if !hmac.Equal(h.Sum(nil), expected) {
		return "", ErrUnauthorized
	}
	return userID, nil
}

// UserAuthMiddleware определяет пользователя запроса. С пустым secret доверяет заголовку X-User-ID.
func UserAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := userFromRequest(r, secret)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func userFromRequest(r *http.Request, secret string) (string, error) {
	if secret == "" {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			return "", ErrUnauthorized
		}
		return userID, nil
	}
	authz := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok {
		return "", ErrUnauthorized
	}
	return VerifyUserToken(secret, strings.TrimSpace(token))
}

// WithUserID кладёт идентификатор пользователя в контекст.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext достаёт идентификатор пользователя.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}
