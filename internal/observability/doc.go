// Package observability exposes the running simulation's counters over
// HTTP: a GET /stats JSON snapshot of bus, intersection, crisis-manager
// and router statistics plus the latest scheduler KPI sample, and a
// GET /stream WebSocket that pushes each new KPI snapshot as the
// scheduler produces it. It never drives the simulation itself — the
// core tick loop runs with or without an observer attached.
package observability
