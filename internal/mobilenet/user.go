// Package mobilenet models the radio side of the emulator: random-walk
// users, radio cells, PDU sessions, the ip pool, and the core that ticks
// the simulation forward.
package mobilenet

import (
	"math"
	"math/rand"

	"github.com/paulmach/orb"
)

// headingSigma is the standard deviation of the per-step heading rotation.
const headingSigma = math.Pi / 16

// User is a subscriber terminal walking the simulation plane. Created at
// boot, never destroyed; mutated only by Core.Tick.
type User struct {
	id       uint32
	pos      orb.Point
	velocity float64
	bound    float64
	heading  orb.Point
}

// UserInfo is the wire form of a user.
type UserInfo struct {
	ID uint32  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Point converts the info position to an orb.Point.
func (i UserInfo) Point() orb.Point {
	return orb.Point{i.X, i.Y}
}

// NewUser places a user at pos heading in the direction of headingAngle
// (radians). bound is the half-side of the simulation square.
func NewUser(id uint32, pos orb.Point, velocity, bound, headingAngle float64) *User {
	return &User{
		id:       id,
		pos:      pos,
		velocity: velocity,
		bound:    bound,
		heading:  orb.Point{math.Cos(headingAngle), math.Sin(headingAngle)},
	}
}

func (u *User) ID() uint32          { return u.id }
func (u *User) Position() orb.Point { return u.pos }
func (u *User) Velocity() float64   { return u.velocity }

// Info returns the wire form of the user.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.id, X: u.pos.X(), Y: u.pos.Y()}
}

// SetPosition places the user directly, bypassing the walk.
func (u *User) SetPosition(pos orb.Point) {
	u.pos = pos
}

// Step advances the position by heading times velocity, wrapping each axis
// onto the torus [-bound, +bound), then rotates the heading by a zero-mean
// Gaussian angle (stddev pi/16, clamped to [-pi, pi]) renormalised to unit
// length.
func (u *User) Step(rng *rand.Rand) {
	u.pos = orb.Point{
		wrap(u.pos.X()+u.heading.X()*u.velocity, u.bound),
		wrap(u.pos.Y()+u.heading.Y()*u.velocity, u.bound),
	}
	delta := rng.NormFloat64() * headingSigma
	delta = math.Max(-math.Pi, math.Min(math.Pi, delta))
	angle := math.Atan2(u.heading.Y(), u.heading.X()) + delta
	u.heading = orb.Point{math.Cos(angle), math.Sin(angle)}
}

// wrap maps x onto [-bound, +bound) by adding the period 2*bound and taking
// the remainder.
func wrap(x, bound float64) float64 {
	if bound <= 0 {
		return x
	}
	period := 2 * bound
	x = math.Mod(x+bound, period)
	if x < 0 {
		x += period
	}
	return x - bound
}
