package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const DriverKeyHeader = "X-Driver-Key"

// DriverKey guards the driver endpoints with a shared key checked against a
// bcrypt hash. An empty hash disables the endpoints.
func DriverKey(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" {
				http.Error(w, "Driver endpoints are disabled", http.StatusForbidden)
				return
			}
			key := r.Header.Get(DriverKeyHeader)
			if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HashDriverKey produces the value for DRIVER_KEY_HASH.
func HashDriverKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(hashed), err
}
