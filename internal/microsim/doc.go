// Package microsim mirrors a running simulation to an optional external
// collaborator (e.g. a SUMO bridge) over MQTT: active vehicles and
// their types/positions, each intersection's current phase, and the
// network's currently blocked edges, plus a step request the
// collaborator may acknowledge. Per spec.md §6 the hook returns
// without promising success — a missing or unreachable broker must not
// affect the core simulation.
//
// The connection uses Eclipse Paho v2's autopaho package for automatic
// reconnection; this package is the module's only MQTT client.
package microsim
