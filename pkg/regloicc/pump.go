// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

// Package regloicc drives Reglo ICC peristaltic pumps over their ASCII
// serial protocol: '\r'-terminated commands answered by a single ack byte
// or a CRLF-terminated field line, volumes and rates in the pump's compact
// mantissa+exponent "type 2" encoding, and an odometer-based stall watchdog
// layered over status polling.
//
// The driver is strictly single threaded: every operation is one half-duplex
// command/response exchange on an exclusively owned byte stream, and nothing
// is retried. Callers that want to pump concurrently across channels from
// multiple goroutines must serialize access to the session themselves.
package regloicc

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Serial link parameters fixed by the pump firmware.
const (
	Baudrate       = 9600
	CommandTimeout = 2 * time.Second
)

// DefaultAddress is the pump address units ship with. Other addresses only
// matter when daisy-chaining.
const DefaultAddress = 1

// AllChannels selects every channel in Stop and WaitForStop. It is never a
// valid channel number (channels count from 1).
const AllChannels = 0

const (
	displayWidth  = 15
	stallAlertMsg = "STALL DETECTED"
	pollDelay     = 50 * time.Millisecond
)

// Options configures session construction. The zero value is usable: address
// 1, clockwise dispense everywhere, tubing calibration left to whatever the
// pump has in memory, no serial number check, no logging.
type Options struct {
	// Address is the pump address (default 1).
	Address int
	// DispenseDirs overrides the "dispense" rotation direction per channel.
	DispenseDirs map[int]Direction
	// TubingIDs calibrates tubing inner diameters (mm) per channel during
	// construction.
	TubingIDs map[int]float64
	// SerialNumber, when non-empty, is checked against the serial number the
	// pump reports; a mismatch aborts construction.
	SerialNumber string
	// Logger receives debug logs of all wire traffic. nil disables logging.
	Logger *zap.Logger
}

// Pump is a session with one pump over one exclusively owned byte stream.
type Pump struct {
	conn   io.ReadWriteCloser
	tr     *Transport
	logger *zap.Logger

	addr         int
	channels     []int
	dispenseDirs map[int]Direction
	tubingIDs    map[int]float64
	trackers     map[int]*channelTracker

	serialNo string
	modelNo  string
	swVer    string
	headCode string

	// now is swapped out by tests driving the stall watchdog.
	now func() time.Time
	// delay between WaitForStop polls; zero disables sleeping.
	pollDelay time.Duration
}

// OpenPort opens the named serial port with the pump's fixed link parameters
// (9600 8N1, 2 s read timeout) and runs the construction sequence on it.
func OpenPort(name string, opts *Options) (*Pump, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: Baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(CommandTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return Open(port, opts)
}

// Open runs the construction sequence on an already-open byte stream: query
// and check the serial number, discover the channel count, initialize the
// pump, apply dispense directions and tubing calibrations, and cache the
// identity strings. The stream must already enforce the pump's read timeout.
//
// Open takes ownership of conn: it is closed if any construction step fails,
// and by Close afterwards.
func Open(conn io.ReadWriteCloser, opts *Options) (*Pump, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := opts.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	p := &Pump{
		conn:      conn,
		tr:        NewTransport(conn, logger),
		logger:    logger,
		addr:      addr,
		now:       time.Now,
		pollDelay: pollDelay,
	}
	if err := p.initialize(opts); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pump) initialize(opts *Options) error {
	var err error
	p.serialNo, err = p.askSerialNo()
	if err != nil {
		return err
	}
	if opts.SerialNumber != "" && p.serialNo != opts.SerialNumber {
		return &Error{
			Kind:     KindSerialNoMismatch,
			Msg:      fmt.Sprintf("wrong pump serial number (expected %q, pump reported %q)", opts.SerialNumber, p.serialNo),
			Expected: opts.SerialNumber,
			Actual:   p.serialNo,
		}
	}
	nChannels, err := p.askNumChannels()
	if err != nil {
		return err
	}
	if _, err := p.tr.RunCommand(fmt.Sprintf("%d~1", p.addr), true); err != nil {
		return err
	}
	p.channels = make([]int, nChannels)
	p.dispenseDirs = make(map[int]Direction, nChannels)
	p.tubingIDs = make(map[int]float64)
	p.trackers = make(map[int]*channelTracker, nChannels)
	for i := range p.channels {
		ch := i + 1
		p.channels[i] = ch
		p.dispenseDirs[ch] = CW
		p.trackers[ch] = &channelTracker{}
	}
	for ch, dir := range opts.DispenseDirs {
		if err := p.SetDispenseDir(ch, dir); err != nil {
			return err
		}
	}
	for _, ch := range sortedChannels(opts.TubingIDs) {
		if _, err := p.SetTubingID(ch, opts.TubingIDs[ch]); err != nil {
			return err
		}
	}
	p.modelNo, p.swVer, p.headCode, err = p.askPumpInfo()
	if err != nil {
		return err
	}
	p.logger.Info("pump session established",
		zap.String("serial_no", p.serialNo),
		zap.String("model_no", p.modelNo),
		zap.Int("channels", nChannels))
	return nil
}

// Close releases the underlying byte stream.
func (p *Pump) Close() error {
	return p.conn.Close()
}

func (p *Pump) askSerialNo() (string, error) {
	vals, err := p.tr.RunQuery(fmt.Sprintf("%dxS", p.addr), FieldString)
	if err != nil {
		return "", err
	}
	return vals[0].(string), nil
}

func (p *Pump) askNumChannels() (int, error) {
	vals, err := p.tr.RunQuery(fmt.Sprintf("%dxA", p.addr), FieldInt)
	if err != nil {
		return 0, err
	}
	return vals[0].(int), nil
}

func (p *Pump) askPumpInfo() (model, swVer, headCode string, err error) {
	vals, err := p.tr.RunQuery(fmt.Sprintf("%d#", p.addr), FieldString, FieldString, FieldString)
	if err != nil {
		return "", "", "", err
	}
	return vals[0].(string), vals[1].(string), vals[2].(string), nil
}

func (p *Pump) askOdometer(ch int) (int, error) {
	vals, err := p.tr.RunQuery(fmt.Sprintf("%dxXX%d", ch, p.addr), FieldInt)
	if err != nil {
		return 0, err
	}
	return vals[0].(int), nil
}

func (p *Pump) validChannel(ch int) error {
	for _, c := range p.channels {
		if c == ch {
			return nil
		}
	}
	return &Error{
		Kind:    KindInvalidChannel,
		Msg:     fmt.Sprintf("invalid channel number %d (pump has channels 1-%d)", ch, len(p.channels)),
		Channel: ch,
	}
}

// SetDispenseDir configures the "dispense" rotation direction for a channel.
// DispenseVolume pumps in this direction, AspirateVolume in its opposite.
func (p *Pump) SetDispenseDir(ch int, dir Direction) error {
	if err := p.validChannel(ch); err != nil {
		return err
	}
	p.dispenseDirs[ch] = dir
	return nil
}

// DispenseDir returns the configured dispense direction for a channel.
func (p *Pump) DispenseDir(ch int) (Direction, error) {
	if err := p.validChannel(ch); err != nil {
		return 0, err
	}
	return p.dispenseDirs[ch], nil
}

// SetTubingID sets the tubing inner diameter for a channel, in mm. The value
// must be one of the diameters listed in the pump documentation; anything
// else fails with an InvalidTubingID error. Returns the calibrated value the
// pump reports back, which is also cached for TubingID.
func (p *Pump) SetTubingID(ch int, innerDiamMM float64) (float64, error) {
	if err := p.validChannel(ch); err != nil {
		return 0, err
	}
	cmd := fmt.Sprintf("%d++%d%04d", ch, p.addr, int(math.Round(innerDiamMM*100)))
	if _, err := p.tr.RunCommand(cmd, true); err != nil {
		if IsKind(err, KindRemoteError) {
			return 0, &Error{
				Kind:    KindInvalidTubingID,
				Msg:     fmt.Sprintf("pump rejected tubing inner diameter %v mm on channel %d", innerDiamMM, ch),
				Channel: ch,
			}
		}
		return 0, err
	}
	vals, err := p.tr.RunQuery(fmt.Sprintf("%d++%d", ch, p.addr), FieldFloat, FieldString)
	if err != nil {
		return 0, err
	}
	diam := vals[0].(float64)
	p.tubingIDs[ch] = diam
	return diam, nil
}

// TubingID returns the cached calibrated tubing inner diameter for a
// channel. ok is false for channels that were never calibrated through this
// session; the driver does not invent defaults for pump-memory values it
// has not seen.
func (p *Pump) TubingID(ch int) (diam float64, ok bool) {
	diam, ok = p.tubingIDs[ch]
	return diam, ok
}

// PumpVolume pumps a volume of liquid on one channel with an explicit
// rotation direction and flow rate. Any motion already in progress on the
// channel is stopped first. The channel's stall tracker is reset when the
// new command starts. With blocking set, PumpVolume polls the channel to
// completion and can fail with a StallDetected error.
func (p *Pump) PumpVolume(ch int, dir Direction, volumeML, rateMLPerMin float64, blocking bool) error {
	if err := p.validChannel(ch); err != nil {
		return err
	}
	if err := p.Stop(ch); err != nil {
		return err
	}
	dirCmd := "J"
	if dir == CCW {
		dirCmd = "K"
	}
	steps := []string{
		fmt.Sprintf("%d%s%d", ch, dirCmd, p.addr), // rotation direction
		fmt.Sprintf("%dO%d", ch, p.addr),          // volume/time mode
		fmt.Sprintf("%dxff%d1", ch, p.addr),       // speed from flow rate
	}
	for _, cmd := range steps {
		if _, err := p.tr.RunCommand(cmd, true); err != nil {
			return err
		}
	}
	if _, err := p.tr.RunQuery(fmt.Sprintf("%dvv%d%s", ch, p.addr, EncodeType2(volumeML)), FieldString); err != nil {
		return err
	}
	if _, err := p.tr.RunQuery(fmt.Sprintf("%dff%d%s", ch, p.addr, EncodeType2(rateMLPerMin)), FieldString); err != nil {
		return err
	}
	if _, err := p.tr.RunCommand(fmt.Sprintf("%dH%d", ch, p.addr), true); err != nil {
		return err
	}
	p.trackers[ch].reset()
	if blocking {
		return p.WaitForStop(ch)
	}
	return nil
}

// DispenseVolume pumps in the channel's configured dispense direction.
func (p *Pump) DispenseVolume(ch int, volumeML, rateMLPerMin float64, blocking bool) error {
	dir, err := p.DispenseDir(ch)
	if err != nil {
		return err
	}
	return p.PumpVolume(ch, dir, volumeML, rateMLPerMin, blocking)
}

// AspirateVolume pumps opposite to the channel's configured dispense
// direction.
func (p *Pump) AspirateVolume(ch int, volumeML, rateMLPerMin float64, blocking bool) error {
	dir, err := p.DispenseDir(ch)
	if err != nil {
		return err
	}
	return p.PumpVolume(ch, dir.Opposite(), volumeML, rateMLPerMin, blocking)
}

// Stop immediately stops pumping on the given channel, or on every channel
// in order when ch is AllChannels.
func (p *Pump) Stop(ch int) error {
	if ch == AllChannels {
		for _, c := range p.channels {
			if err := p.Stop(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := p.validChannel(ch); err != nil {
		return err
	}
	_, err := p.tr.RunCommand(fmt.Sprintf("%dI%d", ch, p.addr), true)
	return err
}

// IsRunning reports whether the channel is currently pumping. While the pump
// answers "running", the odometer counter is polled as a progress heartbeat:
// a value frozen for 2 s or more means the channel is stalled, in which case
// the channel is stopped, an alert is shown on the display, and a
// StallDetected error is returned alongside running=true.
func (p *Pump) IsRunning(ch int) (bool, error) {
	if err := p.validChannel(ch); err != nil {
		return false, err
	}
	ack, err := p.tr.RunCommand(fmt.Sprintf("%dE%d", ch, p.addr), false)
	if err != nil {
		return false, err
	}
	if ack != AckRunning {
		return false, nil
	}
	if err := p.checkStall(ch); err != nil {
		return true, err
	}
	return true, nil
}

func (p *Pump) checkStall(ch int) error {
	value, err := p.askOdometer(ch)
	if err != nil {
		return err
	}
	if p.trackers[ch].progress(value, p.now()) {
		return nil
	}
	p.logger.Warn("channel stalled", zap.Int("channel", ch), zap.Int("odometer", value))
	if err := p.Stop(ch); err != nil {
		return err
	}
	if err := p.ShowMessage(stallAlertMsg); err != nil {
		return err
	}
	return &Error{
		Kind:    KindStallDetected,
		Msg:     fmt.Sprintf("channel %d reported as running but is not counting up -- stall detection likely activated", ch),
		Channel: ch,
	}
}

// WaitForStop polls the given channel until it reports not running, or every
// channel when ch is AllChannels. Channels are polled strictly one after
// another: channel 1 is waited on to completion before channel 2 sees any
// poll. The call blocks until completion or a protocol/stall failure.
func (p *Pump) WaitForStop(ch int) error {
	if ch == AllChannels {
		for _, c := range p.channels {
			if err := p.WaitForStop(c); err != nil {
				return err
			}
		}
		return nil
	}
	for {
		running, err := p.IsRunning(ch)
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
		if p.pollDelay > 0 {
			time.Sleep(p.pollDelay)
		}
	}
}

// ShowMessage shows a message on the pump's display, if present. Text is
// truncated to the display's 15 characters.
func (p *Pump) ShowMessage(text string) error {
	if len(text) > displayWidth {
		text = text[:displayWidth]
	}
	_, err := p.tr.RunCommand(fmt.Sprintf("%dDA%s", p.addr, text), true)
	return err
}

// Address returns the configured pump address.
func (p *Pump) Address() int { return p.addr }

// Channels returns the valid channel numbers, in order.
func (p *Pump) Channels() []int {
	out := make([]int, len(p.channels))
	copy(out, p.channels)
	return out
}

// SerialNo returns the serial number reported by the pump.
func (p *Pump) SerialNo() string { return p.serialNo }

// ModelNo returns the model number reported by the pump.
func (p *Pump) ModelNo() string { return p.modelNo }

// SoftwareVersion returns the firmware version reported by the pump.
func (p *Pump) SoftwareVersion() string { return p.swVer }

// HeadCode returns the pump head code reported by the pump.
func (p *Pump) HeadCode() string { return p.headCode }

func sortedChannels(m map[int]float64) []int {
	out := make([]int, 0, len(m))
	for ch := range m {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}
