package middleware

import "net/http"

// gatewayResponseHeaders are headers the gateway always sets on responses.
var gatewayResponseHeaders = map[string]string{
	"X-Gateway":    "true",
	"X-Powered-By": "Alfred Gateway",
}

// StandardHeadersMiddleware stamps every response with the gateway's
// standard identification headers.
func StandardHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range gatewayResponseHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
