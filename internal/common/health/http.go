package health

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// SetupHttpMux serves checker on /health: 204 when healthy, otherwise 503 with the
// failure as the body.
func SetupHttpMux(mux *http.ServeMux, checker Checker) {
	mux.Handle("/health", Handler(checker))
}

func Handler(checker Checker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err := checker.Check(); err != nil {
			log.Warnf("health check failed: %v", err)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte(err.Error())); err != nil {
				log.WithError(err).Error("failed to write health check response")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
