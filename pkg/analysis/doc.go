// Package analysis is the orchestrator: it drives per-item lookups and
// per-pair evidence gathering through the bounded limiters, reduces the
// gathered evidence through the merger, consensus, and confidence engines,
// and assembles the response with cache statistics and timing.
//
// Provider failures never propagate; they degrade the affected evidence to
// absent and surface only in the debug trace. Cache failures on the item and
// pair stores are the one exception: the response is still computed, but the
// request reports an internal error.
package analysis
