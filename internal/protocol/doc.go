// Package protocol owns the colony wire contract.
//
// Ownership boundary:
// - 8-byte header primitives (frame)
// - event specifications and the canonical registry (schema)
// - fixed-layout codec and typed event shapes (this package)
//
// The codec is format-only; permission checks belong to the multiplexer.
package protocol
