package middleware

import (
	"net/http"
	"strings"
	"time"

	internaljwt "codesync-backend/internal/jwt"
)

func ValidateJWTMiddleware(role internaljwt.Role) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				writeUnauthorized(w, "Unauthorized")
				return
			}

			claims, err := internaljwt.ParseToken(tokenString, role)
			if err != nil {
				writeUnauthorized(w, "Unauthorized")
				return
			}

			exp, ok := claims["exp"].(float64)
			if !ok || time.Now().Unix() > int64(exp) {
				writeUnauthorized(w, "Token expired")
				return
			}

			next(w, r)
		}
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"message":"` + message + `"}`))
}

var ValidateAdminJWT = ValidateJWTMiddleware(internaljwt.RoleAdmin)
