package connection

import (
	"errors"
	"fmt"
)

// ErrorKind classifies connection failures.
type ErrorKind int

const (
	KindUnsupported ErrorKind = iota + 1
	KindAuth
	KindRateLimited
	KindMalformed
	KindNetwork
	KindNotFound
	KindServer
)

var (
	ErrUnsupportedAPI = errors.New("api routine is not supported")
	ErrAuth           = errors.New("authentication failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrMalformed      = errors.New("malformed response")
	ErrNetwork        = errors.New("network failure")
	ErrNotFound       = errors.New("not found")
	ErrServer         = errors.New("server error")
)

var kindSentinels = map[ErrorKind]error{
	KindUnsupported: ErrUnsupportedAPI,
	KindAuth:        ErrAuth,
	KindRateLimited: ErrRateLimited,
	KindMalformed:   ErrMalformed,
	KindNetwork:     ErrNetwork,
	KindNotFound:    ErrNotFound,
	KindServer:      ErrServer,
}

// Error is returned by every Connection method. errors.Is matches it
// against the sentinel of its kind.
type Error struct {
	Kind       ErrorKind
	Routine    ApiRoutine
	StatusCode int
	URL        string
	Message    string
	Err        error
}

func newError(kind ErrorKind, routine ApiRoutine, err error) *Error {
	return &Error{Kind: kind, Routine: routine, Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Routine, kindSentinels[e.Kind])
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == kindSentinels[e.Kind]
}

// IsRetryable reports whether trying again later may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
}

func kindOfStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 404 || status == 410:
		return KindNotFound
	case status == 420 || status == 429:
		// 420 Enhance Your Calm is the Twitter 1.0 rate limit
		return KindRateLimited
	case status >= 500:
		return KindServer
	}
	return KindMalformed
}
