package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopslot/shopslot/libs/auth"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID string
	Role   string
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(Actor)
	return a, ok && a.UserID != ""
}

func ContextWithActor(ctx context.Context, a Actor) context.Context {
	if info := requestInfoFromContext(ctx); info != nil {
		info.userID = a.UserID
	}
	return context.WithValue(ctx, ctxKeyActor, a)
}

// WithIdentity verifies a bearer token when one is present. Requests without
// an Authorization header pass through anonymously; a bad token is rejected.
func WithIdentity(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid Authorization header")
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			ctx := ContextWithActor(r.Context(), Actor{UserID: claims.Subject, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor rejects anonymous requests.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects callers whose role claim is not one of roles.
func RequireRole(roles ...string) Middleware {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, _ := ActorFromContext(r.Context())
			if _, ok := allowed[actor.Role]; !ok {
				WriteError(w, http.StatusForbidden, "forbidden", "role not permitted")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
