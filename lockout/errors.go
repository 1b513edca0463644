package lockout

import "errors"

var (
	errMaxAttempts = errors.New("lockout max attempts must be >= 1")
	errDuration    = errors.New("lockout duration must be > 0")
)
