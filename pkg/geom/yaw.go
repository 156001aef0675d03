package geom

import (
	"math"
	"strconv"
)

// Yaw is a rotation about the vertical axis in whole degrees. Placement
// only produces quarter turns.
type Yaw int

const (
	Yaw0   Yaw = 0
	Yaw90  Yaw = 90
	Yaw180 Yaw = 180
	Yaw270 Yaw = 270
)

// YawStep is the fixed increment applied by a rotate action.
const YawStep = 90

// Normalize maps any yaw onto [0, 360).
func (y Yaw) Normalize() Yaw {
	d := int(y) % 360
	if d < 0 {
		d += 360
	}
	return Yaw(d)
}

// Next returns the yaw one quarter turn further: (y + 90) mod 360.
func (y Yaw) Next() Yaw {
	return (y + YawStep).Normalize()
}

// Valid reports whether y is one of the four quarter-turn values.
func (y Yaw) Valid() bool {
	return y >= 0 && y < 360 && int(y)%YawStep == 0
}

func (y Yaw) String() string {
	return strconv.Itoa(int(y)) + "deg"
}

// Radians converts the yaw for renderers that expect radians.
func (y Yaw) Radians() float64 {
	return float64(y) * math.Pi / 180
}
