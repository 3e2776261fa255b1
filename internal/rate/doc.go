// Package rate provides the Redis-backed fixed-window counter that throttles
// failed OAuth callbacks per client IP.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - pcb:   failed callbacks per-IP
//
// # What this package must NOT do
//
//   - Count successful callbacks.
//   - Be imported outside the goPortal module.
package rate
