package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errNoToken       = errors.New("missing bearer token")
	errAdminDisabled = errors.New("admin access is disabled")
)

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// role returns the role claim of the request's token. The role is read as
// issued; nothing here decides what a role may do beyond the admin check.
func (h *Handler) role(r *http.Request) (string, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return "", errNoToken
	}
	if !h.auth.AdminEnabled() {
		return "", errAdminDisabled
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if h.auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.auth.Issuer))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(h.auth.Secret), nil
	}, opts...)
	if err != nil {
		return "", err
	}

	switch v := claims[h.auth.RoleClaim].(type) {
	case string:
		return v, nil
	case []interface{}:
		// A list of roles grants admin when any entry is the admin role.
		for _, item := range v {
			if s, ok := item.(string); ok && s == h.auth.AdminRole {
				return s, nil
			}
		}
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s, nil
			}
		}
	}
	return "", nil
}

// isAdmin reports whether the request carries a valid admin token.
func (h *Handler) isAdmin(r *http.Request) bool {
	role, err := h.role(r)
	return err == nil && role == h.auth.AdminRole
}

// requireAdmin rejects requests without a valid admin token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, err := h.role(r)
		switch {
		case errors.Is(err, errAdminDisabled):
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "Admin access is disabled")
			return
		case err != nil:
			h.logger.Warn("Admin request rejected", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
			return
		case role != h.auth.AdminRole:
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
