package auth

import (
	"net/http"
	"strings"

	"github.com/medflow/timesheet-service/pkg/actor"
	"github.com/medflow/timesheet-service/pkg/httputil"
	"github.com/medflow/timesheet-service/pkg/permissions"
)

// Middleware validates bearer tokens and stores the identity in the request
// context. Token permissions are merged with those configured for its roles.
func Middleware(m *Manager, rolePermissions map[string][]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				httputil.Error(w, r, unauthorized())
				return
			}

			claims, err := m.Verify(tokenString)
			if err != nil {
				httputil.Error(w, r, err)
				return
			}

			id := Identity{
				UserID:      claims.UserID,
				Email:       claims.Email,
				Name:        claims.Name,
				Roles:       claims.Roles,
				Permissions: permissions.MergePermissions(claims.Permissions, permissions.ForRoles(rolePermissions, claims.Roles)),
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = actor.WithActor(ctx, &actor.Actor{ID: id.UserID, Name: id.Name, Email: id.Email})
			ctx = httputil.WithUserID(ctx, id.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
