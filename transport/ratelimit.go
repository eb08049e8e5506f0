package transport

import (
	"time"

	"golang.org/x/time/rate"
)

// Hot-path diagnostics are rate limited so a flood of malformed or
// unroutable traffic cannot drown the log. One limiter per drop class.
func newLogLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Second), 5)
}

var (
	limitNoDevice    = newLogLimiter()
	limitMalformed   = newLogLimiter()
	limitUnknownPeer = newLogLimiter()
	limitNoTransport = newLogLimiter()
	limitNoRoute     = newLogLimiter()
)
