package mobilenet

import (
	"math/rand"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Ran is a radio cell: a disc in the plane owning the sessions of the users
// it covers. The session slice keeps insertion order so advancement is
// deterministic.
type Ran struct {
	id       uint32
	centre   orb.Point
	radius   float64
	sessions []*PDUSession
}

// RanInfo is the wire form of a radio cell.
type RanInfo struct {
	ID     uint32  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Point converts the info centre to an orb.Point.
func (i RanInfo) Point() orb.Point {
	return orb.Point{i.X, i.Y}
}

// NewRan places a cell of the given radius at centre.
func NewRan(id uint32, centre orb.Point, radius float64) *Ran {
	return &Ran{id: id, centre: centre, radius: radius}
}

func (r *Ran) ID() uint32          { return r.id }
func (r *Ran) Position() orb.Point { return r.centre }
func (r *Ran) Radius() float64     { return r.radius }

// Info returns the wire form of the cell.
func (r *Ran) Info() RanInfo {
	return RanInfo{ID: r.id, X: r.centre.X(), Y: r.centre.Y(), Radius: r.radius}
}

// Contains reports whether the user sits within coverage. The boundary
// counts as inside.
func (r *Ran) Contains(u *User) bool {
	return planar.Distance(r.centre, u.Position()) <= r.radius
}

// Attach takes ownership of the session. The caller has verified coverage.
func (r *Ran) Attach(s *PDUSession) {
	s.setRan(r.id)
	r.sessions = append(r.sessions, s)
}

// Sessions returns the owned sessions in insertion order.
func (r *Ran) Sessions() []*PDUSession {
	out := make([]*PDUSession, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Advance steps every owned user and removes the sessions whose user walked
// out of coverage, returning them in insertion order.
func (r *Ran) Advance(rng *rand.Rand) []*PDUSession {
	var left []*PDUSession
	kept := r.sessions[:0]
	for _, s := range r.sessions {
		s.User().Step(rng)
		if r.Contains(s.User()) {
			kept = append(kept, s)
		} else {
			left = append(left, s)
		}
	}
	r.sessions = kept
	return left
}
