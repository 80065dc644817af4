// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

package regloicc

import (
	"errors"
	"testing"
)

func TestErrorKindOf(t *testing.T) {
	err := errKind(KindCommandTimeout, "no response to %q", "1~1")
	kind, ok := ErrorKindOf(err)
	if !ok || kind != KindCommandTimeout {
		t.Errorf("ErrorKindOf = %v, %v", kind, ok)
	}

	if _, ok := ErrorKindOf(nil); ok {
		t.Error("ErrorKindOf(nil) reported a kind")
	}
	if _, ok := ErrorKindOf(errors.New("plain")); ok {
		t.Error("ErrorKindOf of a foreign error reported a kind")
	}
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindStallDetected, Msg: "channel 2 is stuck", Channel: 2}
	want := "stall detected: channel 2 is stuck"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := &Error{Kind: KindDeviceNotFound}
	if bare.Error() != "device not found" {
		t.Errorf("Error() = %q", bare.Error())
	}
}
