package orchestrator

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/Frixxie/mobile-network-emulator/internal/edge"
)

// Sample pairs a resolved user position with the number of fresh accesses
// observed from it.
type Sample struct {
	Point  orb.Point
	Weight int
}

// Strategy reduces usage samples to a suggested application position. The
// false return means the samples carry no signal.
type Strategy func(samples []Sample) (orb.Point, bool)

const (
	StrategyWeighted = "weighted"
	StrategyAverage  = "average"
)

// StrategyByName maps a flag value to its strategy.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case StrategyWeighted:
		return WeightedCentroid, nil
	case StrategyAverage:
		return MeanPosition, nil
	default:
		return nil, fmt.Errorf("unknown placement strategy %q", name)
	}
}

// WeightedCentroid returns the access-weighted centroid of the samples:
// heavy users pull the suggested position harder.
func WeightedCentroid(samples []Sample) (orb.Point, bool) {
	var sumX, sumY float64
	var total int
	for _, s := range samples {
		sumX += s.Point.X() * float64(s.Weight)
		sumY += s.Point.Y() * float64(s.Weight)
		total += s.Weight
	}
	if total == 0 {
		return orb.Point{}, false
	}
	return orb.Point{sumX / float64(total), sumY / float64(total)}, true
}

// MeanPosition returns the unweighted mean of the sample points.
func MeanPosition(samples []Sample) (orb.Point, bool) {
	if len(samples) == 0 {
		return orb.Point{}, false
	}
	var sumX, sumY float64
	for _, s := range samples {
		sumX += s.Point.X()
		sumY += s.Point.Y()
	}
	n := float64(len(samples))
	return orb.Point{sumX / n, sumY / n}, true
}

// nearestDataCenter returns the id of the data center closest to p. Ties
// keep the earliest in the list.
func nearestDataCenter(p orb.Point, dcs []edge.DataCenterInfo) (uint32, bool) {
	best := -1
	bestDist := math.MaxFloat64
	for i, dc := range dcs {
		if d := planar.Distance(p, dc.Point()); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0, false
	}
	return dcs[best].ID, true
}
