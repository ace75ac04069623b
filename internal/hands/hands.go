package hands

import (
	"image"
	"math"
)

const (
	// TrigMaxAngle is one full revolution in fixed-point angle units
	TrigMaxAngle = 0x10000

	// TrigMaxRatio is the fixed-point value of sin(90°)
	TrigMaxRatio = 0xffff

	quarterTurn = TrigMaxAngle / 4
)

// sinTable holds sin(0°..90°) scaled by TrigMaxRatio, one entry per angle unit
var sinTable = buildSinTable()

func buildSinTable() [quarterTurn + 1]int32 {
	var t [quarterTurn + 1]int32
	for i := range t {
		rad := float64(i) * 2 * math.Pi / TrigMaxAngle
		t[i] = int32(math.Round(math.Sin(rad) * TrigMaxRatio))
	}
	return t
}

// SinLookup returns the fixed-point sine of angle (angle units, any sign)
func SinLookup(angle int32) int32 {
	a := angle & (TrigMaxAngle - 1)
	switch {
	case a <= quarterTurn:
		return sinTable[a]
	case a <= 2*quarterTurn:
		return sinTable[2*quarterTurn-a]
	case a <= 3*quarterTurn:
		return -sinTable[a-2*quarterTurn]
	default:
		return -sinTable[4*quarterTurn-a]
	}
}

// CosLookup returns the fixed-point cosine of angle
func CosLookup(angle int32) int32 {
	return SinLookup(angle + quarterTurn)
}

// MinuteAngle returns the minute hand angle for minutes in [0,60)
func MinuteAngle(minutes int) int32 {
	return int32(TrigMaxAngle * minutes / 60)
}

// HourAngle returns the hour hand angle. The minute contribution moves the
// hand smoothly between hour marks instead of jumping on the hour.
func HourAngle(hours, minutes int) int32 {
	base := int32(TrigMaxAngle * (hours % 12) / 12)
	return base + (MinuteAngle(minutes)*(TrigMaxAngle/12))/TrigMaxAngle
}

// HandPoint returns the tip of a hand of the given radius. Angle zero points
// up and angles grow clockwise, in screen coordinates (y down).
func HandPoint(center image.Point, angle int32, radius int) image.Point {
	r := int32(radius)
	x := SinLookup(angle)*r/TrigMaxRatio + int32(center.X)
	y := -CosLookup(angle)*r/TrigMaxRatio + int32(center.Y)
	return image.Pt(int(x), int(y))
}
