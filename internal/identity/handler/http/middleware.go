package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/identity/auth"
	"github.com/karyatek/storefront/internal/identity/domain"
	"github.com/karyatek/storefront/internal/owner"
	"github.com/karyatek/storefront/pkg/httputil"
)

// SessionHeader carries the guest session token. The middleware echoes it
// back on every response so clients can persist a freshly minted session.
const SessionHeader = "X-Session-Id"

type claimsKey struct{}

// ClaimsFromContext returns the access token claims attached by ResolveOwner,
// present only for authenticated callers.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

// ResolveOwner resolves every request into an Owner: a bearer token becomes
// an authenticated user, otherwise the session header identifies a guest,
// minting a fresh token when the request carries neither.
func ResolveOwner(jwt *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				claims, err := jwt.ValidateAccessToken(token)
				if err != nil {
					writeAuthError(w, "INVALID_TOKEN", "invalid or expired access token")
					return
				}
				userID, err := uuid.Parse(claims.UserID)
				if err != nil {
					writeAuthError(w, "INVALID_TOKEN", "invalid access token subject")
					return
				}

				ctx := owner.NewContext(r.Context(), owner.User(userID))
				ctx = context.WithValue(ctx, claimsKey{}, claims)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			session := strings.TrimSpace(r.Header.Get(SessionHeader))
			if session == "" {
				session = owner.NewSessionToken()
			}
			w.Header().Set(SessionHeader, session)

			ctx := owner.NewContext(r.Context(), owner.Guest(session))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects guests; only authenticated users pass.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		own, ok := owner.FromContext(r.Context())
		if !ok || !own.IsUser() {
			writeAuthError(w, "UNAUTHORIZED", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeAuthError(w, "UNAUTHORIZED", "authentication required")
			return
		}
		if claims.Role != domain.RoleAdmin {
			httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "admin role required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeAuthError(w http.ResponseWriter, code, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: code, Message: message},
	})
}
