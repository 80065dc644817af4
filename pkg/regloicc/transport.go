// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

package regloicc

import (
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Ack bytes the pump sends in response to simple commands. '+' doubles as a
// generic negative ack outside of status queries.
const (
	AckSuccess     = '*' // command accepted
	AckUnsupported = '#' // command not supported
	AckRunning     = '+' // "running" in status queries
	AckStopped     = '-' // "not running" in status queries
)

// FieldType declares the expected type of one field in a query response.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldFloat
)

// Transport frames commands onto the underlying byte stream and classifies
// the pump's replies. The stream is assumed to be half duplex with a fixed
// read timeout (2 s on a real pump): every call performs exactly one write
// followed by one blocking read, and no retries are attempted here.
type Transport struct {
	rw     io.ReadWriter
	logger *zap.Logger
}

// NewTransport wraps a byte stream. A nil logger disables logging.
func NewTransport(rw io.ReadWriter, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{rw: rw, logger: logger}
}

// Send writes a command with its carriage-return terminator.
func (t *Transport) Send(cmd string) error {
	t.logger.Debug("sending command", zap.String("cmd", cmd))
	_, err := t.rw.Write(append([]byte(cmd), '\r'))
	return err
}

// RunCommand sends a command and reads the single ack byte. When
// checkSuccess is set, any ack other than '*' fails with a RemoteError;
// otherwise the raw ack is returned for the caller to interpret (status
// queries use '+' and '-' as answers, not as failures).
func (t *Transport) RunCommand(cmd string, checkSuccess bool) (byte, error) {
	if err := t.Send(cmd); err != nil {
		return 0, err
	}
	var buf [1]byte
	n, err := t.rw.Read(buf[:])
	if n == 0 {
		if err != nil && err != io.EOF {
			return 0, errKind(KindCommandTimeout, "no response to %q: %v", cmd, err)
		}
		return 0, errKind(KindCommandTimeout, "no response to %q", cmd)
	}
	ack := buf[0]
	t.logger.Debug("received ack", zap.String("ack", string(ack)))
	switch ack {
	case AckSuccess, AckUnsupported, AckRunning, AckStopped:
	default:
		return 0, errKind(KindInvalidResponse, "unexpected ack byte %q to %q", ack, cmd)
	}
	if checkSuccess && ack != AckSuccess {
		return 0, errKind(KindRemoteError, "pump rejected %q with ack %q", cmd, ack)
	}
	return ack, nil
}

// RunQuery sends a command and reads a CRLF-terminated text response, then
// splits it into exactly len(fields) whitespace-separated values converted
// per the declared field types: int for FieldInt, float64 for FieldFloat and
// string for FieldString.
//
// The line is split at most len(fields)-1 times from the left, so the last
// field absorbs the remainder of the line verbatim. Model description
// strings with embedded spaces depend on this; an *early* field with
// embedded whitespace would mis-parse, which matches the pump's actual
// response shapes.
func (t *Transport) RunQuery(cmd string, fields ...FieldType) ([]interface{}, error) {
	if err := t.Send(cmd); err != nil {
		return nil, err
	}
	line := strings.TrimSpace(t.readLine())
	if line == "" {
		return nil, errKind(KindCommandTimeout, "no response to %q", cmd)
	}
	t.logger.Debug("received response", zap.String("line", line))
	raw := splitFields(line, len(fields))
	if len(raw) != len(fields) {
		return nil, errKind(KindInvalidResponse,
			"expected response with %d data fields, got %d", len(fields), len(raw))
	}
	values := make([]interface{}, len(fields))
	for i, ft := range fields {
		switch ft {
		case FieldInt:
			v, err := strconv.Atoi(raw[i])
			if err != nil {
				return nil, &Error{
					Kind:  KindInvalidResponse,
					Msg:   "failed to convert value in field " + strconv.Itoa(i),
					Field: i,
				}
			}
			values[i] = v
		case FieldFloat:
			v, err := strconv.ParseFloat(raw[i], 64)
			if err != nil {
				return nil, &Error{
					Kind:  KindInvalidResponse,
					Msg:   "failed to convert value in field " + strconv.Itoa(i),
					Field: i,
				}
			}
			values[i] = v
		default:
			values[i] = raw[i]
		}
	}
	return values, nil
}

// readLine accumulates bytes until a CR+LF terminator or until the stream
// stops producing bytes (read timeout). A partial line is returned as-is;
// the caller decides whether emptiness means a timeout.
func (t *Transport) readLine() string {
	var buf []byte
	var one [1]byte
	for {
		n, _ := t.rw.Read(one[:])
		if n == 0 {
			return string(buf)
		}
		buf = append(buf, one[0])
		if len(buf) >= 2 && buf[len(buf)-2] == '\r' && buf[len(buf)-1] == '\n' {
			return string(buf)
		}
	}
}

// splitFields splits line on whitespace runs at most n-1 times from the
// left; the final segment is kept unsplit. Fewer than n fields may be
// returned if the line runs out of text.
func splitFields(line string, n int) []string {
	out := make([]string, 0, n)
	rest := line
	for len(out) < n-1 {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			out = append(out, rest)
			rest = ""
			break
		}
		out = append(out, rest[:i])
		rest = rest[i:]
	}
	rest = strings.TrimLeft(rest, " \t")
	if rest != "" {
		out = append(out, rest)
	}
	return out
}
