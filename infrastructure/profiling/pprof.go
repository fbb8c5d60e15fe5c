// Package profiling starts the optional pprof and Pyroscope profilers.
// Both are off unless enabled through the environment.
package profiling

import (
	"net/http"
	_ "net/http/pprof" //nolint:gosec // served on localhost only
	"os"

	"github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

// StartPprofServer serves /debug/pprof on localhost:$PPROF_PORT (6060)
// when ENABLE_PROFILING=true.
func StartPprofServer(log logger.Logger) {
	if os.Getenv("ENABLE_PROFILING") != "true" {
		return
	}

	port := os.Getenv("PPROF_PORT")
	if port == "" {
		port = "6060"
	}
	addr := "localhost:" + port

	go func() {
		log.Info("Starting pprof server", logger.String("address", addr))
		//nolint:gosec // profiling endpoint, no timeouts needed
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Error("pprof server stopped", logger.Error(err))
		}
	}()
}
