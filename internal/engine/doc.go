// Package engine implements the protocol engine: it owns the stdio
// transport, classifies inbound lines as requests or notifications, runs
// the initialize handshake, dispatches to the bound provider, and converts
// provider failures into protocol error responses.
//
// The engine is strictly sequential: one line is read, its handler runs to
// completion (including any persistence write), and only then is the next
// line read. Provider state therefore needs no locking.
package engine
