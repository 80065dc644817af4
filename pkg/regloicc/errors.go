// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

package regloicc

import "fmt"

// ErrorKind discriminates driver failures. Every error the driver produces
// wraps one of these kinds; callers branch on the kind rather than on a
// type hierarchy.
type ErrorKind int

const (
	// KindCommandTimeout: no response bytes arrived within the timeout window.
	KindCommandTimeout ErrorKind = iota
	// KindInvalidResponse: the pump's reply did not match the expected shape
	// (bad ack byte, wrong field count, or a field that failed conversion).
	KindInvalidResponse
	// KindRemoteError: the pump explicitly acknowledged failure.
	KindRemoteError
	// KindInvalidTubingID: the pump rejected a tubing inner-diameter value.
	KindInvalidTubingID
	// KindInvalidParameter: the pump rejected a parameter value.
	KindInvalidParameter
	// KindStallDetected: a channel reported running with no odometer progress.
	KindStallDetected
	// KindDeviceNotFound: USB discovery found no matching pump.
	KindDeviceNotFound
	// KindSerialNoMismatch: the pump's serial number did not match the
	// caller's expectation.
	KindSerialNoMismatch
	// KindInvalidChannel: local channel-number validation failure. Never
	// causes any bytes to be written to the pump.
	KindInvalidChannel
)

var kindNames = map[ErrorKind]string{
	KindCommandTimeout:   "command timeout",
	KindInvalidResponse:  "invalid response",
	KindRemoteError:      "remote error",
	KindInvalidTubingID:  "invalid tubing id",
	KindInvalidParameter: "invalid parameter",
	KindStallDetected:    "stall detected",
	KindDeviceNotFound:   "device not found",
	KindSerialNoMismatch: "serial number mismatch",
	KindInvalidChannel:   "invalid channel",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the driver's error type. Kind is always set; the payload fields
// are populated per kind (Channel for stall and channel-validation errors,
// Field for response conversion failures, Expected/Actual for serial number
// mismatches).
type Error struct {
	Kind     ErrorKind
	Msg      string
	Channel  int
	Field    int
	Expected string
	Actual   string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// ErrorKindOf extracts the ErrorKind from an error returned by this package.
// The second return is false for nil and foreign errors.
func ErrorKindOf(err error) (ErrorKind, bool) {
	if e, ok := err.(*Error); ok {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a driver error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := ErrorKindOf(err)
	return ok && k == kind
}

func errKind(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
