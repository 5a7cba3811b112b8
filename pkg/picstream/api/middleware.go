package api

import (
	"net/http"

	"github.com/go-chi/jwtauth"

	"github.com/kavichu/picstream/pkg/picstream"
)

// usernameClaims are checked in order for the caller's username. Cognito-style
// tokens carry the username under its own claim; plain tokens fall back to
// the subject.
var usernameClaims = []string{"username", "cognito:username", "sub"}

// ClaimsExtractor builds the typed picstream.Claims once at the request
// boundary from the verified JWT, and rejects tokens that carry no usable
// identity. Handlers downstream read the claims from the request context
// and pass them explicitly into the service.
func ClaimsExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, rawClaims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		claims, err := picstream.NewClaims(
			stringClaim(rawClaims, "sub"),
			firstStringClaim(rawClaims, usernameClaims),
			stringClaim(rawClaims, "email"),
		)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(picstream.WithClaims(r.Context(), claims)))
	})
}

func stringClaim(claims map[string]interface{}, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}

func firstStringClaim(claims map[string]interface{}, names []string) string {
	for _, name := range names {
		if v := stringClaim(claims, name); v != "" {
			return v
		}
	}
	return ""
}
