package handlers

import (
	"net/http"

	"github.com/smartkubik/import-api/internal/authz"
)

// identity reads the caller set by authz.Middleware and answers 401 when it is absent.
func identity(w http.ResponseWriter, r *http.Request) (tenantID, userID string, ok bool) {
	id, ok := authz.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing tenant or user context")
		return "", "", false
	}
	return id.TenantID, id.UserID, true
}
