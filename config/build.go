package config

import (
	"fmt"
	"math"
	"math/rand"
	"net/netip"
	"time"

	"github.com/paulmach/orb"

	"github.com/Frixxie/mobile-network-emulator/internal/edge"
	"github.com/Frixxie/mobile-network-emulator/internal/mobilenet"
)

// Topology is a built scenario: the live objects the emulator server is
// assembled from.
type Topology struct {
	Seed    int64
	Users   []*mobilenet.User
	Rans    []*mobilenet.Ran
	Pool    *mobilenet.IPPool
	Network *edge.Network
}

// Build validates the scenario and constructs the topology. Generated
// positions and headings come from a single rng seeded with the scenario
// seed; a zero seed falls back to the wall clock, so only explicit seeds
// reproduce.
func (s *Scenario) Build() (*Topology, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	users := make([]*mobilenet.User, 0, s.Users.Count)
	for i := 0; i < s.Users.Count; i++ {
		heading := rng.Float64() * 2 * math.Pi
		users = append(users, mobilenet.NewUser(uint32(i), randomPoint(rng, s.Bound), s.Users.Velocity, s.Bound, heading))
	}

	var rans []*mobilenet.Ran
	if s.Rans.Cells != nil {
		rans = make([]*mobilenet.Ran, 0, len(s.Rans.Cells))
		for _, c := range s.Rans.Cells {
			rans = append(rans, mobilenet.NewRan(c.ID, orb.Point{c.X, c.Y}, c.Radius))
		}
	} else {
		rans = make([]*mobilenet.Ran, 0, s.Rans.Count)
		for i := 0; i < s.Rans.Count; i++ {
			rans = append(rans, mobilenet.NewRan(uint32(i), randomPoint(rng, s.Bound), s.Rans.Radius))
		}
	}

	var dcs []*edge.DataCenter
	if s.Edges.Centers != nil {
		dcs = make([]*edge.DataCenter, 0, len(s.Edges.Centers))
		for _, e := range s.Edges.Centers {
			name := e.Name
			if name == "" {
				name = fmt.Sprintf("edc-%d", e.ID)
			}
			dcs = append(dcs, edge.NewDataCenter(e.ID, name, orb.Point{e.X, e.Y}))
		}
	} else {
		dcs = make([]*edge.DataCenter, 0, s.Edges.Count)
		for i := 0; i < s.Edges.Count; i++ {
			dcs = append(dcs, edge.NewDataCenter(uint32(i), fmt.Sprintf("edc-%d", i), randomPoint(rng, s.Bound)))
		}
	}

	byID := make(map[uint32]*edge.DataCenter, len(dcs))
	for _, dc := range dcs {
		byID[dc.ID()] = dc
	}
	for _, app := range s.Applications {
		if err := byID[app.EDC].AddApplication(app.ID); err != nil {
			return nil, fmt.Errorf("place application %d on edc %d: %w", app.ID, app.EDC, err)
		}
	}

	var addrs []netip.Addr
	if s.IPPool.Addrs != nil {
		addrs = make([]netip.Addr, len(s.IPPool.Addrs))
		copy(addrs, s.IPPool.Addrs)
	} else {
		addrs = make([]netip.Addr, 0, s.IPPool.Count)
		for i := 0; i < s.IPPool.Count; i++ {
			n := i + 1
			addrs = append(addrs, netip.AddrFrom4([4]byte{10, 0, byte(n >> 8), byte(n)}))
		}
	}

	return &Topology{
		Seed:    seed,
		Users:   users,
		Rans:    rans,
		Pool:    mobilenet.NewIPPool(addrs),
		Network: edge.NewNetwork(dcs...),
	}, nil
}

func randomPoint(rng *rand.Rand, bound float64) orb.Point {
	return orb.Point{
		rng.Float64()*2*bound - bound,
		rng.Float64()*2*bound - bound,
	}
}
