package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/adgenie/backend/internal/errors"
)

type contextKey string

const userContextKey contextKey = "user"

// UserContext is the resolved caller attached to authenticated requests.
type UserContext struct {
	UserID           uuid.UUID
	Email            string
	SubscriptionTier string
	View             *UserView
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Middleware requires a valid access token and attaches the resolved user to
// the request context.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := apperrors.GetRequestID(r.Context())

			token, ok := BearerToken(r)
			if !ok {
				apperrors.WriteError(w, requestID, apperrors.Unauthorized("missing or malformed authorization header"))
				return
			}

			user, err := service.CurrentUser(r.Context(), token)
			if err != nil {
				apperrors.WriteError(w, requestID, err)
				return
			}

			ctx := withUser(r.Context(), &UserContext{
				UserID:           user.ID,
				Email:            user.Email,
				SubscriptionTier: string(user.SubscriptionTier),
				View:             NewUserView(user),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalMiddleware resolves a user when a valid token is present and
// passes the request through anonymously otherwise. A malformed or expired
// token is treated the same as no token.
func OptionalMiddleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := service.CurrentUser(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := withUser(r.Context(), &UserContext{
				UserID:           user.ID,
				Email:            user.Email,
				SubscriptionTier: string(user.SubscriptionTier),
				View:             NewUserView(user),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext returns the authenticated caller, or nil for anonymous
// requests.
func GetUserFromContext(ctx context.Context) *UserContext {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok {
		return nil
	}
	return user
}
