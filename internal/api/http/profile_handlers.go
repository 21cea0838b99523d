package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	auth "github.com/conceptcatch/conceptcatch/internal/auth/middleware"
	"github.com/conceptcatch/conceptcatch/internal/profile"
	"github.com/conceptcatch/conceptcatch/internal/rbac"
)

// GetProfileHandler serves a student's aggregate profile: average score,
// attempt count and the most frequent mistake areas. Students see their own;
// profile:view-any unlocks the rest.
func GetProfileHandler(profiles profile.Store, checker *rbac.Checker, defaultTopN int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := chi.URLParam(r, "studentID")
		sub := auth.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if studentID != sub && !checker.Has(role, "profile:view-any") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		topN := defaultTopN
		if v := r.URL.Query().Get("top"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				topN = n
			}
		}
		p, err := profiles.Get(r.Context(), studentID, topN)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
