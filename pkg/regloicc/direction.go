// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

package regloicc

import "fmt"

// Direction is the pump rotor rotation direction, as viewed from the front.
type Direction int

const (
	CW Direction = iota // clockwise
	CCW
)

// Opposite returns the other rotation direction.
func (d Direction) Opposite() Direction {
	if d == CW {
		return CCW
	}
	return CW
}

func (d Direction) String() string {
	switch d {
	case CW:
		return "cw"
	case CCW:
		return "ccw"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection converts "cw" or "ccw" into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "cw":
		return CW, nil
	case "ccw":
		return CCW, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want cw or ccw)", s)
	}
}
