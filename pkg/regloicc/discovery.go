// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

package regloicc

import (
	"fmt"
	"strconv"

	"go.bug.st/serial/enumerator"
)

// USBID is a USB vendor/product ID pair.
type USBID struct {
	VID uint16
	PID uint16
}

func (id USBID) String() string {
	return fmt.Sprintf("%04X:%04X", id.VID, id.PID)
}

// DefaultUSBIDs are the vendor/product IDs the pump family enumerates with.
var DefaultUSBIDs = []USBID{{VID: 0x265C, PID: 0x0001}}

// PortInfo describes one discovered pump port. SerialNumber is whatever the
// USB descriptors carry and may be empty; the pumps do not expose their
// device serial number over USB, so telling two pumps apart reliably means
// opening them and reading SerialNo.
type PortInfo struct {
	Name         string
	SerialNumber string
}

// FindPorts lists serial ports whose USB vendor/product IDs match one of the
// given pairs (DefaultUSBIDs when none are given). Detection is based purely
// on what the OS reports; no port is opened or verified. Pumps attached
// through USB-to-RS-232 converters will not be found.
func FindPorts(ids ...USBID) ([]PortInfo, error) {
	if len(ids) == 0 {
		ids = DefaultUSBIDs
	}
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	var found []PortInfo
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		vid, err := strconv.ParseUint(port.VID, 16, 16)
		if err != nil {
			continue
		}
		pid, err := strconv.ParseUint(port.PID, 16, 16)
		if err != nil {
			continue
		}
		for _, id := range ids {
			if uint16(vid) == id.VID && uint16(pid) == id.PID {
				found = append(found, PortInfo{
					Name:         port.Name,
					SerialNumber: port.SerialNumber,
				})
				break
			}
		}
	}
	return found, nil
}

// OpenFirst opens a session with the first USB-connected pump found.
// Convenience for the common case of a single attached pump; fails with a
// DeviceNotFound error when nothing matches.
func OpenFirst(opts *Options, ids ...USBID) (*Pump, error) {
	ports, err := FindPorts(ids...)
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, errKind(KindDeviceNotFound, "no USB-connected pumps found")
	}
	return OpenPort(ports[0].Name, opts)
}
