// Package wvlog centralizes this adapter's logging so that the "log and
// drop" failure model spec'd throughout the host/session callbacks goes
// through one place instead of being silently discarded. It is a thin
// wrapper over github.com/google/logger, the logging library the
// teacher repo uses for its own init/error logging.
package wvlog

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/logger"
)

var (
	once sync.Once
)

// Init wires up github.com/google/logger to stderr. It is safe to call
// more than once; only the first call takes effect. Callers that never
// call Init still get working Info/Error/Warning calls, since
// google/logger defaults to a usable logger before Init.
func Init(verbose bool) {
	once.Do(func() {
		logger.Init("sparkle-cdm-widevine", verbose, false, os.Stderr)
	})
}

// Infof logs an informational message, analogous to the reference
// adapter's LOG() macro used for the "happy path" trace lines.
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warningf logs a recoverable condition: an unknown session id in a CDM
// callback, a promise id with no parked slot, and similar "logged and
// dropped, never fatal" conditions spec'd for the host.
func Warningf(format string, args ...interface{}) {
	logger.Warningf(format, args...)
}

// Errorf logs a hard failure: CDM load failure, initialization failure,
// and other conditions the adapter maps to a non-None OpenCDMError.
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// Sprint is a small helper for building one-line context strings, e.g.
// for the correlation ids attached to parked promises.
func Sprint(args ...interface{}) string {
	return fmt.Sprint(args...)
}
