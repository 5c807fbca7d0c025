package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer turns handler panics into a JSON 500. http.ErrAbortHandler is
// re-raised so the server can drop the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity, as net/http does
				panic(rec)
			}
			slog.Error("Handler panic", "panic", rec, "method", r.Method, "path", r.URL.Path, "stack", string(debug.Stack()))
			if r.Header.Get("Connection") == "Upgrade" {
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Lỗi server"}`))
		}()
		next.ServeHTTP(w, r)
	})
}
