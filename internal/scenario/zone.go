package scenario

import (
	"math/rand"

	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

// Zone is a named rectangular region vehicles can be sampled from or
// toward, weighted relative to the other zones in its set.
type Zone struct {
	Name   string
	Weight float64
	Min    roadnet.Point
	Max    roadnet.Point
}

// samplePosition picks a zone weighted by Weight, then a uniform
// random point within its bounding rectangle. Panics if zones is
// empty; callers must not construct a scenario with no zones.
func samplePosition(zones []Zone, rng *rand.Rand) roadnet.Point {
	total := 0.0
	for _, z := range zones {
		total += z.Weight
	}
	pick := rng.Float64() * total
	chosen := zones[len(zones)-1]
	for _, z := range zones {
		if pick < z.Weight {
			chosen = z
			break
		}
		pick -= z.Weight
	}
	return roadnet.Point{
		X: chosen.Min.X + rng.Float64()*(chosen.Max.X-chosen.Min.X),
		Y: chosen.Min.Y + rng.Float64()*(chosen.Max.Y-chosen.Min.Y),
	}
}
