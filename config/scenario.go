// Package config loads and validates scenario files: the YAML description
// of the synthetic topology the emulator boots with.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario marks scenario files that parse but do not describe a
// buildable topology.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is the YAML form of a topology. The count-shaped sections place
// entities at seeded random positions; explicit lists win over counts.
type Scenario struct {
	Seed         int64     `yaml:"seed"`
	Bound        float64   `yaml:"bound"`
	Users        UserSpec  `yaml:"users"`
	Rans         RanSpec   `yaml:"rans"`
	Edges        EdgeSpec  `yaml:"edcs"`
	Applications []AppSpec `yaml:"applications"`
	IPPool       PoolSpec  `yaml:"ip_pool"`
}

// UserSpec sizes the subscriber population. All users share one velocity;
// zero velocity pins them in place.
type UserSpec struct {
	Count    int     `yaml:"count"`
	Velocity float64 `yaml:"velocity"`
}

// RanEntry places one radio cell explicitly.
type RanEntry struct {
	ID     uint32  `yaml:"id"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

// RanSpec is either a count with a shared radius or an explicit cell list.
type RanSpec struct {
	Count  int     `yaml:"count"`
	Radius float64 `yaml:"radius"`

	// Cells is non-nil when the scenario lists cells explicitly.
	Cells []RanEntry `yaml:"-"`
}

func (s *RanSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		cells := []RanEntry{}
		if err := node.Decode(&cells); err != nil {
			return err
		}
		s.Count, s.Radius, s.Cells = 0, 0, cells
		return nil
	case yaml.MappingNode:
		var plain struct {
			Count  int     `yaml:"count"`
			Radius float64 `yaml:"radius"`
		}
		plain.Count, plain.Radius = s.Count, s.Radius
		if err := node.Decode(&plain); err != nil {
			return err
		}
		s.Count, s.Radius, s.Cells = plain.Count, plain.Radius, nil
		return nil
	default:
		return fmt.Errorf("line %d: rans must be a count mapping or a cell list", node.Line)
	}
}

// EdgeEntry places one edge data center explicitly. An empty name defaults
// to "edc-<id>".
type EdgeEntry struct {
	ID   uint32  `yaml:"id"`
	Name string  `yaml:"name"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
}

// EdgeSpec is either a count or an explicit data center list.
type EdgeSpec struct {
	Count int `yaml:"count"`

	// Centers is non-nil when the scenario lists data centers explicitly.
	Centers []EdgeEntry `yaml:"-"`
}

func (s *EdgeSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		centers := []EdgeEntry{}
		if err := node.Decode(&centers); err != nil {
			return err
		}
		s.Count, s.Centers = 0, centers
		return nil
	case yaml.MappingNode:
		var plain struct {
			Count int `yaml:"count"`
		}
		plain.Count = s.Count
		if err := node.Decode(&plain); err != nil {
			return err
		}
		s.Count, s.Centers = plain.Count, nil
		return nil
	default:
		return fmt.Errorf("line %d: edcs must be a count mapping or a data center list", node.Line)
	}
}

// AppSpec pins one application to its initial host.
type AppSpec struct {
	ID  uint32 `yaml:"id"`
	EDC uint32 `yaml:"edc"`
}

// PoolSpec sizes the session address pool. A count generates sequential
// 10.0.x.y addresses starting at 10.0.0.1; an explicit list wins.
type PoolSpec struct {
	Count int `yaml:"count"`

	// Addrs is non-nil when the scenario lists addresses explicitly.
	Addrs []netip.Addr `yaml:"-"`
}

func (s *PoolSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var raw []string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		addrs := make([]netip.Addr, 0, len(raw))
		for _, r := range raw {
			addr, err := netip.ParseAddr(r)
			if err != nil {
				return fmt.Errorf("ip_pool: %w", err)
			}
			addrs = append(addrs, addr)
		}
		s.Count, s.Addrs = 0, addrs
		return nil
	case yaml.MappingNode:
		var plain struct {
			Count int `yaml:"count"`
		}
		plain.Count = s.Count
		if err := node.Decode(&plain); err != nil {
			return err
		}
		s.Count, s.Addrs = plain.Count, nil
		return nil
	default:
		return fmt.Errorf("line %d: ip_pool must be a count mapping or an address list", node.Line)
	}
}

// Default returns the stock scenario: 32 users walking at 1.5 per tick in a
// 1000x1000 square, 16 cells of radius 100, 8 data centers, 8 applications
// all starting on data center 0, and one address per user.
func Default() *Scenario {
	apps := make([]AppSpec, 8)
	for i := range apps {
		apps[i] = AppSpec{ID: uint32(i), EDC: 0}
	}
	return &Scenario{
		Seed:         42,
		Bound:        500,
		Users:        UserSpec{Count: 32, Velocity: 1.5},
		Rans:         RanSpec{Count: 16, Radius: 100},
		Edges:        EdgeSpec{Count: 8},
		Applications: apps,
		IPPool:       PoolSpec{Count: 32},
	}
}

// Load reads a scenario file, overlaying it on the defaults: sections the
// file omits keep their Default() values.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the scenario describes a buildable topology: positive
// bound and radii, unique ids, applications hosted on declared data
// centers, and enough addresses for every user to attach at once.
func (s *Scenario) Validate() error {
	if s.Bound <= 0 {
		return fmt.Errorf("%w: bound must be positive, got %v", ErrInvalidScenario, s.Bound)
	}
	if s.Users.Count < 0 {
		return fmt.Errorf("%w: users.count must not be negative", ErrInvalidScenario)
	}
	if s.Users.Velocity < 0 {
		return fmt.Errorf("%w: users.velocity must not be negative", ErrInvalidScenario)
	}

	if s.Rans.Cells != nil {
		seen := make(map[uint32]struct{}, len(s.Rans.Cells))
		for _, c := range s.Rans.Cells {
			if _, dup := seen[c.ID]; dup {
				return fmt.Errorf("%w: duplicate ran id %d", ErrInvalidScenario, c.ID)
			}
			seen[c.ID] = struct{}{}
			if c.Radius <= 0 {
				return fmt.Errorf("%w: ran %d radius must be positive", ErrInvalidScenario, c.ID)
			}
		}
	} else {
		if s.Rans.Count < 0 {
			return fmt.Errorf("%w: rans.count must not be negative", ErrInvalidScenario)
		}
		if s.Rans.Count > 0 && s.Rans.Radius <= 0 {
			return fmt.Errorf("%w: rans.radius must be positive", ErrInvalidScenario)
		}
	}

	edcIDs := make(map[uint32]struct{})
	if s.Edges.Centers != nil {
		for _, e := range s.Edges.Centers {
			if _, dup := edcIDs[e.ID]; dup {
				return fmt.Errorf("%w: duplicate edc id %d", ErrInvalidScenario, e.ID)
			}
			edcIDs[e.ID] = struct{}{}
		}
	} else {
		if s.Edges.Count < 0 {
			return fmt.Errorf("%w: edcs.count must not be negative", ErrInvalidScenario)
		}
		for i := 0; i < s.Edges.Count; i++ {
			edcIDs[uint32(i)] = struct{}{}
		}
	}

	appIDs := make(map[uint32]struct{}, len(s.Applications))
	for _, app := range s.Applications {
		if _, dup := appIDs[app.ID]; dup {
			return fmt.Errorf("%w: duplicate application id %d", ErrInvalidScenario, app.ID)
		}
		appIDs[app.ID] = struct{}{}
		if _, ok := edcIDs[app.EDC]; !ok {
			return fmt.Errorf("%w: application %d placed on unknown edc %d", ErrInvalidScenario, app.ID, app.EDC)
		}
	}

	if s.IPPool.Addrs != nil {
		seen := make(map[netip.Addr]struct{}, len(s.IPPool.Addrs))
		for _, addr := range s.IPPool.Addrs {
			if _, dup := seen[addr]; dup {
				return fmt.Errorf("%w: duplicate pool address %s", ErrInvalidScenario, addr)
			}
			seen[addr] = struct{}{}
		}
		if len(s.IPPool.Addrs) < s.Users.Count {
			return fmt.Errorf("%w: ip pool holds %d addresses for %d users", ErrInvalidScenario, len(s.IPPool.Addrs), s.Users.Count)
		}
	} else {
		if s.IPPool.Count < s.Users.Count {
			return fmt.Errorf("%w: ip pool holds %d addresses for %d users", ErrInvalidScenario, s.IPPool.Count, s.Users.Count)
		}
		if s.IPPool.Count > 0xffff {
			return fmt.Errorf("%w: generated ip pool is capped at %d addresses", ErrInvalidScenario, 0xffff)
		}
	}
	return nil
}
