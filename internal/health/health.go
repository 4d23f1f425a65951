// Package health serves liveness and readiness probes.
package health

import (
	"net/http"

	"github.com/star/skysat/internal/tle"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns a handler reporting 200 "ready\n" once store holds a
// dataset, and 503 before that.
func Readyz(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if !store.Loaded() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("no TLE dataset loaded\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready\n"))
	}
}
