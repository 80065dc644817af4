// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// wireEvent is one recorded read or write on the pump connection.
type wireEvent struct {
	Timestamp time.Time `cbor:"0,keyasint"`
	Dir       string    `cbor:"1,keyasint"` // "tx" or "rx"
	Data      []byte    `cbor:"2,keyasint"`
}

// recordingConnection taps a Connection and keeps a transcript of all bytes
// exchanged with the pump. The transcript is written as a CBOR array when
// the connection closes, for offline protocol inspection.
type recordingConnection struct {
	inner  Connection
	path   string
	events []wireEvent
}

func newRecordingConnection(inner Connection, path string) *recordingConnection {
	return &recordingConnection{inner: inner, path: path}
}

func (r *recordingConnection) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		data := make([]byte, n)
		copy(data, p[:n])
		r.events = append(r.events, wireEvent{Timestamp: time.Now(), Dir: "rx", Data: data})
	}
	return n, err
}

func (r *recordingConnection) Write(p []byte) (int, error) {
	data := make([]byte, len(p))
	copy(data, p)
	r.events = append(r.events, wireEvent{Timestamp: time.Now(), Dir: "tx", Data: data})
	return r.inner.Write(p)
}

func (r *recordingConnection) Close() error {
	closeErr := r.inner.Close()
	if err := r.flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write transcript: %v\n", err)
	}
	return closeErr
}

func (r *recordingConnection) flush() error {
	data, err := cbor.Marshal(r.events)
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o644)
}
