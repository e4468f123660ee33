// Package middleware provides the HTTP service's request logging, panic
// recovery and CORS handling.
package middleware

import "net/http"

// CORS headers sent on every response.
const (
	AllowOrigin   = "*"
	AllowMethods  = "GET, POST, OPTIONS"
	AllowHeaders  = "Content-Type"
	ExposeHeaders = "Content-Disposition, X-Bibrename-Status, X-Bibrename-DOI, X-Bibrename-Error"
)

// CORS adds cross-origin headers and answers preflight requests with 204.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", AllowOrigin)
		h.Set("Access-Control-Allow-Methods", AllowMethods)
		h.Set("Access-Control-Allow-Headers", AllowHeaders)
		h.Set("Access-Control-Expose-Headers", ExposeHeaders)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
