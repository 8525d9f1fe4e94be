package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"challan-ledger/internal/repository"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// TokenMiddleware resolves a bearer access token (header first, then the
// token query parameter for websocket connections) to the acting user. The
// user id lands in the request context; handlers pass it on explicitly as
// the actor of ledger operations.
func TokenMiddleware(tokenRepo *repository.AccessTokenRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plainToken := ""

			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				plainToken = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			}
			if plainToken == "" {
				plainToken = r.URL.Query().Get("token")
			}
			if plainToken == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			token, err := tokenRepo.FindByPlainToken(r.Context(), plainToken)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, token.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}
