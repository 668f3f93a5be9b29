package middleware

import (
	"net/http"

	"github.com/MrEthical07/sessionguard"
	"github.com/google/uuid"
)

const HeaderRequestID = "X-Request-Id"

// RequestID propagates X-Request-Id into the request context and the
// response. When required is set a missing header is rejected with 400;
// otherwise a UUID is generated.
func RequestID(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				if required {
					WriteError(w, r, http.StatusBadRequest, "X-Request-Id is required")
					return
				}
				id = uuid.NewString()
			}

			w.Header().Set(HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(sessionguard.WithRequestID(r.Context(), id)))
		})
	}
}
