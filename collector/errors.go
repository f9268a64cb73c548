package collector

import "errors"

// ErrNoSession is returned when the cookie file is missing or holds no usable
// session. Run pulse-login to capture one.
var ErrNoSession = errors.New("collector: no platform session")

// ErrInvalidInput is returned when configuration fails validation.
var ErrInvalidInput = errors.New("collector: invalid input")
