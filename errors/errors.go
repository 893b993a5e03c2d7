package errors

import (
	"fmt"
)

type ErrorCode int

const (
	UpstreamClosed ErrorCode = iota + 1000
	ProtocolViolation
	InvariantViolation
	Cancelled
	ExprEvalError ErrorCode = iota + 2000
	ParseError
	StateStoreError ErrorCode = iota + 3000
	VnodeNotOwned
	InvalidConfiguration ErrorCode = iota + 4000
	InternalError        ErrorCode = iota + 5000
)

func (c ErrorCode) String() string {
	switch c {
	case UpstreamClosed:
		return "UpstreamClosed"
	case ProtocolViolation:
		return "ProtocolViolation"
	case InvariantViolation:
		return "InvariantViolation"
	case Cancelled:
		return "Cancelled"
	case ExprEvalError:
		return "ExprEvalError"
	case ParseError:
		return "ParseError"
	case StateStoreError:
		return "StateStoreError"
	case VnodeNotOwned:
		return "VnodeNotOwned"
	case InvalidConfiguration:
		return "InvalidConfiguration"
	case InternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// StreamError is the coded error returned by the join operator and its collaborators. Fatal join conditions
// are always reported as a StreamError so the surrounding supervisor can classify them.
type StreamError struct {
	Code ErrorCode
	Msg  string
}

func (e StreamError) Error() string {
	return e.Msg
}

func NewStreamErrorf(code ErrorCode, msgFormat string, args ...interface{}) StreamError {
	return StreamError{Code: code, Msg: fmt.Sprintf(msgFormat, args...)}
}

func NewStreamError(code ErrorCode, msg string) StreamError {
	return StreamError{Code: code, Msg: msg}
}

func NewInvalidConfigurationError(msg string) StreamError {
	return NewStreamErrorf(InvalidConfiguration, "invalid configuration: %s", msg)
}

func NewInvariantViolation(msgFormat string, args ...interface{}) StreamError {
	return NewStreamErrorf(InvariantViolation, "invariant violation: "+msgFormat, args...)
}

func NewProtocolViolation(msgFormat string, args ...interface{}) StreamError {
	return NewStreamErrorf(ProtocolViolation, "protocol violation: "+msgFormat, args...)
}

func NewInternalError(errReference string) StreamError {
	return NewStreamErrorf(InternalError, "internal error - reference: %s please consult logs for details", errReference)
}

func IsStreamErrorWithCode(err error, code ErrorCode) bool {
	var serr StreamError
	if As(err, &serr) {
		return serr.Code == code
	}
	return false
}

// IsFatal returns true for errors that must abort the actor.
func IsFatal(err error) bool {
	var serr StreamError
	if !As(err, &serr) {
		return true
	}
	return serr.Code != ExprEvalError
}
