// Package scenario defines the world-mutation hooks that drive a
// simulation beyond its agents' own deliberation: injecting vehicles
// on a traffic-demand profile, and triggering/resolving incidents.
package scenario

import "github.com/MDylan95/sma-trafic/internal/world"

// Scenario is a callback triple the scheduler drives once per tick:
// Setup runs once before the first tick, Step runs every tick, and
// Statistics is read at the end of a run.
type Scenario interface {
	Name() string
	Setup(w *world.World)
	Step(w *world.World, tick int, simTime float64)
	Statistics() map[string]any
}
