// Package streak turns a habit's per-day completion entries into a current
// consecutive-day streak and a fixed-length daily progress series.
//
// Calculate and Aggregate are pure functions of their inputs and a reference
// "today". Engine binds them to a Store and a clock, and is the only place
// that writes a computed streak back through the store.
//
// Days are calendar dates with no time component, represented as midnight
// UTC. "Today" is taken in a single reference location, UTC unless the
// engine is built WithLocation.
package streak
