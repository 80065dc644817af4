// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

package regloicc

import (
	"testing"
	"time"
)

// constructionScript is the wire exchange Open performs against a healthy
// two-channel pump at address 1 with no overrides.
func constructionScript() []exchange {
	return []exchange{
		{cmd: "1xS", reply: "10081546\r\n"},
		{cmd: "1xA", reply: "2\r\n"},
		{cmd: "1~1", reply: "*"},
		{cmd: "1#", reply: "ICC101 074A 10408\r\n"},
	}
}

func newTestPump(t *testing.T, opts *Options, extra ...exchange) (*Pump, *scriptConn) {
	t.Helper()
	conn := newScriptConn(t, append(constructionScript(), extra...))
	p, err := Open(conn, opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	p.pollDelay = 0
	return p, conn
}

// ============================================================
// Construction
// ============================================================

func TestOpen_Defaults(t *testing.T) {
	p, conn := newTestPump(t, nil)

	if got := p.SerialNo(); got != "10081546" {
		t.Errorf("SerialNo() = %q", got)
	}
	if got := p.ModelNo(); got != "ICC101" {
		t.Errorf("ModelNo() = %q", got)
	}
	if got := p.SoftwareVersion(); got != "074A" {
		t.Errorf("SoftwareVersion() = %q", got)
	}
	if got := p.HeadCode(); got != "10408" {
		t.Errorf("HeadCode() = %q", got)
	}
	if got := p.Address(); got != 1 {
		t.Errorf("Address() = %d", got)
	}
	chs := p.Channels()
	if len(chs) != 2 || chs[0] != 1 || chs[1] != 2 {
		t.Errorf("Channels() = %v, want [1 2]", chs)
	}
	for _, ch := range chs {
		dir, err := p.DispenseDir(ch)
		if err != nil || dir != CW {
			t.Errorf("DispenseDir(%d) = %v, %v; want CW", ch, dir, err)
		}
	}
	conn.assertDone()
}

func TestOpen_SerialNoMismatch(t *testing.T) {
	conn := newScriptConn(t, []exchange{{cmd: "1xS", reply: "10081546\r\n"}})

	_, err := Open(conn, &Options{SerialNumber: "99999999"})
	if !IsKind(err, KindSerialNoMismatch) {
		t.Fatalf("expected serial number mismatch, got %v", err)
	}
	e := err.(*Error)
	if e.Expected != "99999999" || e.Actual != "10081546" {
		t.Errorf("mismatch payload = %q/%q", e.Expected, e.Actual)
	}
	if !conn.closed {
		t.Error("connection not released after failed construction")
	}
}

func TestOpen_DispenseDirOverrides(t *testing.T) {
	p, _ := newTestPump(t, &Options{DispenseDirs: map[int]Direction{2: CCW}})

	if dir, _ := p.DispenseDir(1); dir != CW {
		t.Errorf("DispenseDir(1) = %v, want CW", dir)
	}
	if dir, _ := p.DispenseDir(2); dir != CCW {
		t.Errorf("DispenseDir(2) = %v, want CCW", dir)
	}
}

func TestOpen_InvalidDispenseChannel(t *testing.T) {
	conn := newScriptConn(t, constructionScript()[:3])

	_, err := Open(conn, &Options{DispenseDirs: map[int]Direction{5: CCW}})
	if !IsKind(err, KindInvalidChannel) {
		t.Fatalf("expected invalid channel, got %v", err)
	}
	if !conn.closed {
		t.Error("connection not released after failed construction")
	}
}

func TestOpen_TubingCalibration(t *testing.T) {
	script := constructionScript()
	script = append(script[:3],
		exchange{cmd: "1++10250", reply: "*"},
		exchange{cmd: "1++1", reply: "2.50 mm\r\n"},
		exchange{cmd: "1#", reply: "ICC101 074A 10408\r\n"},
	)
	conn := newScriptConn(t, script)

	p, err := Open(conn, &Options{TubingIDs: map[int]float64{1: 2.5}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	diam, ok := p.TubingID(1)
	if !ok || diam != 2.5 {
		t.Errorf("TubingID(1) = %v, %v; want 2.5, true", diam, ok)
	}
	if _, ok := p.TubingID(2); ok {
		t.Error("TubingID(2) should be unset for an uncalibrated channel")
	}
	conn.assertDone()
}

// ============================================================
// Tubing calibration
// ============================================================

func TestSetTubingID(t *testing.T) {
	p, conn := newTestPump(t, nil,
		exchange{cmd: "2++10480", reply: "*"},
		exchange{cmd: "2++1", reply: "4.80 mm\r\n"},
	)

	diam, err := p.SetTubingID(2, 4.8)
	if err != nil {
		t.Fatalf("SetTubingID failed: %v", err)
	}
	if diam != 4.8 {
		t.Errorf("calibrated diameter = %v, want 4.8", diam)
	}
	conn.assertDone()
}

func TestSetTubingID_Rejected(t *testing.T) {
	p, _ := newTestPump(t, nil,
		exchange{cmd: "1++19999", reply: "#"},
	)

	_, err := p.SetTubingID(1, 99.99)
	if !IsKind(err, KindInvalidTubingID) {
		t.Fatalf("expected invalid tubing id, got %v", err)
	}
	if e := err.(*Error); e.Channel != 1 {
		t.Errorf("error names channel %d, want 1", e.Channel)
	}
}

// ============================================================
// Pumping
// ============================================================

func TestPumpVolume_CommandSequence(t *testing.T) {
	p, conn := newTestPump(t, nil,
		exchange{cmd: "2I1", reply: "*"},           // stop any existing motion
		exchange{cmd: "2K1", reply: "*"},           // CCW
		exchange{cmd: "2O1", reply: "*"},           // volume/time mode
		exchange{cmd: "2xff11", reply: "*"},        // speed from flow rate
		exchange{cmd: "2vv11500+0", reply: "1500+0\r\n"},
		exchange{cmd: "2ff15000-1", reply: "5000-1\r\n"},
		exchange{cmd: "2H1", reply: "*"},
	)

	if err := p.PumpVolume(2, CCW, 1.5, 0.5, false); err != nil {
		t.Fatalf("PumpVolume failed: %v", err)
	}
	if p.trackers[2].observed {
		t.Error("stall tracker not reset by new pump command")
	}
	conn.assertDone()
}

func TestDispenseAndAspirate_DirectionResolution(t *testing.T) {
	startSeq := func(dirCmd string) []exchange {
		return []exchange{
			{cmd: "1I1", reply: "*"},
			{cmd: "1" + dirCmd + "1", reply: "*"},
			{cmd: "1O1", reply: "*"},
			{cmd: "1xff11", reply: "*"},
			{cmd: "1vv11000+0", reply: "1000+0\r\n"},
			{cmd: "1ff12000+0", reply: "2000+0\r\n"},
			{cmd: "1H1", reply: "*"},
		}
	}

	t.Run("dispense uses configured direction", func(t *testing.T) {
		p, conn := newTestPump(t, nil, startSeq("J")...)
		if err := p.DispenseVolume(1, 1.0, 2.0, false); err != nil {
			t.Fatalf("DispenseVolume failed: %v", err)
		}
		conn.assertDone()
	})

	t.Run("aspirate uses opposite direction", func(t *testing.T) {
		p, conn := newTestPump(t, nil, startSeq("K")...)
		if err := p.AspirateVolume(1, 1.0, 2.0, false); err != nil {
			t.Fatalf("AspirateVolume failed: %v", err)
		}
		conn.assertDone()
	})

	t.Run("override flips both", func(t *testing.T) {
		p, conn := newTestPump(t, &Options{DispenseDirs: map[int]Direction{1: CCW}}, startSeq("K")...)
		if err := p.DispenseVolume(1, 1.0, 2.0, false); err != nil {
			t.Fatalf("DispenseVolume failed: %v", err)
		}
		conn.assertDone()
	})
}

func TestStop_AllChannelsSequential(t *testing.T) {
	p, conn := newTestPump(t, nil,
		exchange{cmd: "1I1", reply: "*"},
		exchange{cmd: "2I1", reply: "*"},
	)

	if err := p.Stop(AllChannels); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	conn.assertDone()
}

// ============================================================
// Channel validation
// ============================================================

func TestChannelValidation_NoWireTraffic(t *testing.T) {
	p, conn := newTestPump(t, nil)
	baseline := len(conn.sent)

	calls := []struct {
		name string
		call func() error
	}{
		{"Stop", func() error { return p.Stop(3) }},
		{"IsRunning", func() error { _, err := p.IsRunning(9); return err }},
		{"SetTubingID", func() error { _, err := p.SetTubingID(7, 2.5); return err }},
		{"PumpVolume", func() error { return p.PumpVolume(3, CW, 1, 1, false) }},
		{"DispenseVolume", func() error { return p.DispenseVolume(0, 1, 1, false) }},
		{"WaitForStop", func() error { return p.WaitForStop(5) }},
		{"SetDispenseDir", func() error { return p.SetDispenseDir(4, CCW) }},
	}

	for _, c := range calls {
		err := c.call()
		if !IsKind(err, KindInvalidChannel) {
			t.Errorf("%s: expected invalid channel, got %v", c.name, err)
		}
	}
	if len(conn.sent) != baseline {
		t.Errorf("local validation sent bytes to the pump: %v", conn.sent[baseline:])
	}
}

// ============================================================
// Status polling and stall detection
// ============================================================

func TestIsRunning(t *testing.T) {
	p, conn := newTestPump(t, nil,
		exchange{cmd: "1E1", reply: "-"},
		exchange{cmd: "1E1", reply: "+"},
		exchange{cmd: "1xXX1", reply: "125\r\n"},
	)

	running, err := p.IsRunning(1)
	if err != nil || running {
		t.Fatalf("IsRunning = %v, %v; want false, nil", running, err)
	}

	running, err = p.IsRunning(1)
	if err != nil || !running {
		t.Fatalf("IsRunning = %v, %v; want true, nil", running, err)
	}
	conn.assertDone()
}

func TestStallDetection(t *testing.T) {
	p, conn := newTestPump(t, nil,
		exchange{cmd: "1E1", reply: "+"},
		exchange{cmd: "1xXX1", reply: "500\r\n"},
		exchange{cmd: "1E1", reply: "+"},
		exchange{cmd: "1xXX1", reply: "500\r\n"},
		exchange{cmd: "1E1", reply: "+"},
		exchange{cmd: "1xXX1", reply: "500\r\n"},
		exchange{cmd: "1I1", reply: "*"},
		exchange{cmd: "1DASTALL DETECTED", reply: "*"},
	)

	base := time.Now()
	polls := []time.Time{base, base.Add(1 * time.Second), base.Add(2500 * time.Millisecond)}
	poll := 0
	p.now = func() time.Time {
		now := polls[poll]
		if poll < len(polls)-1 {
			poll++
		}
		return now
	}

	// Frozen odometer inside the window: still counts as running.
	for i := 0; i < 2; i++ {
		running, err := p.IsRunning(1)
		if err != nil || !running {
			t.Fatalf("poll %d: IsRunning = %v, %v; want true, nil", i, running, err)
		}
	}

	// Third poll crosses the 2 s window with no progress.
	running, err := p.IsRunning(1)
	if !running {
		t.Error("stalled channel still reports running at the protocol level")
	}
	if !IsKind(err, KindStallDetected) {
		t.Fatalf("expected stall detected, got %v", err)
	}
	if e := err.(*Error); e.Channel != 1 {
		t.Errorf("error names channel %d, want 1", e.Channel)
	}

	stops := 0
	for _, cmd := range conn.sent {
		if cmd == "1I1" {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("stop command sent %d times, want exactly once", stops)
	}
	conn.assertDone()
}

func TestStallTrackerResetByNewCommand(t *testing.T) {
	p, conn := newTestPump(t, nil,
		exchange{cmd: "1E1", reply: "+"},
		exchange{cmd: "1xXX1", reply: "500\r\n"},
		exchange{cmd: "1I1", reply: "*"},
		exchange{cmd: "1J1", reply: "*"},
		exchange{cmd: "1O1", reply: "*"},
		exchange{cmd: "1xff11", reply: "*"},
		exchange{cmd: "1vv11000+0", reply: "1000+0\r\n"},
		exchange{cmd: "1ff11000+0", reply: "1000+0\r\n"},
		exchange{cmd: "1H1", reply: "*"},
		exchange{cmd: "1E1", reply: "+"},
		exchange{cmd: "1xXX1", reply: "500\r\n"},
	)

	base := time.Now()
	now := base
	p.now = func() time.Time { return now }

	if _, err := p.IsRunning(1); err != nil {
		t.Fatalf("first poll failed: %v", err)
	}

	// New pump command resets the tracker; an identical odometer value far
	// in the future must register as fresh progress, not as a stall.
	if err := p.PumpVolume(1, CW, 1.0, 1.0, false); err != nil {
		t.Fatalf("PumpVolume failed: %v", err)
	}
	now = base.Add(time.Hour)

	running, err := p.IsRunning(1)
	if err != nil || !running {
		t.Fatalf("post-reset poll: IsRunning = %v, %v; want true, nil", running, err)
	}
	conn.assertDone()
}

func TestWaitForStop_AllPollsChannelsInOrder(t *testing.T) {
	// The script itself enforces ordering: channel 1 is polled to completion
	// before any channel 2 poll is accepted.
	p, conn := newTestPump(t, nil,
		exchange{cmd: "1E1", reply: "+"},
		exchange{cmd: "1xXX1", reply: "10\r\n"},
		exchange{cmd: "1E1", reply: "+"},
		exchange{cmd: "1xXX1", reply: "20\r\n"},
		exchange{cmd: "1E1", reply: "-"},
		exchange{cmd: "2E1", reply: "+"},
		exchange{cmd: "2xXX1", reply: "5\r\n"},
		exchange{cmd: "2E1", reply: "-"},
	)

	if err := p.WaitForStop(AllChannels); err != nil {
		t.Fatalf("WaitForStop failed: %v", err)
	}
	conn.assertDone()
}

// ============================================================
// Display and lifecycle
// ============================================================

func TestShowMessage_Truncation(t *testing.T) {
	p, conn := newTestPump(t, nil,
		exchange{cmd: "1DAabcdefghijklmno", reply: "*"},
	)

	if err := p.ShowMessage("abcdefghijklmnopqrst"); err != nil {
		t.Fatalf("ShowMessage failed: %v", err)
	}
	conn.assertDone()
}

func TestClose(t *testing.T) {
	p, conn := newTestPump(t, nil)
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !conn.closed {
		t.Error("Close did not release the connection")
	}
}
