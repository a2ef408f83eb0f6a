package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// ServiceKeyMiddleware guards internal endpoints (email dispatch) that the
// authentication provider calls server-to-server.
type ServiceKeyMiddleware struct {
	keyHash    string
	headerName string
}

func NewServiceKeyMiddleware(key, headerName string) *ServiceKeyMiddleware {
	m := &ServiceKeyMiddleware{headerName: headerName}
	if key != "" {
		m.keyHash = HashAPIKey(key)
	}
	return m
}

func (m *ServiceKeyMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.keyHash == "" {
			writeError(w, http.StatusUnauthorized, "service key not configured")
			return
		}
		key := r.Header.Get(m.headerName)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing service key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(HashAPIKey(key)), []byte(m.keyHash)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid service key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
