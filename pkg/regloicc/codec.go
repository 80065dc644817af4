// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

package regloicc

import (
	"strconv"
	"strings"
)

// EncodeType2 renders a volume or flow rate in the pump's "type 2" numeric
// format: the value is normalized to scientific notation with three digits
// after the decimal point, the decimal point is dropped, and the exponent is
// appended with an explicit sign. For example 2.5e-3 encodes as "2500-3" and
// 1.0 as "1000+0".
//
// The wire format leaves a single digit for the exponent, so the value must
// normalize to an exponent in [-9, 9]. Real pump volume and rate limits keep
// practical inputs well inside that range; out-of-range values are a caller
// error and produce an encoding the pump will reject.
func EncodeType2(value float64) string {
	s := strconv.FormatFloat(value, 'e', 3, 64)
	mantissa, expPart, _ := strings.Cut(s, "e")
	mantissa = strings.Replace(mantissa, ".", "", 1)
	exp, _ := strconv.Atoi(expPart)
	var b strings.Builder
	b.WriteString(mantissa)
	if exp >= 0 {
		b.WriteByte('+')
	}
	b.WriteString(strconv.Itoa(exp))
	return b.String()
}
