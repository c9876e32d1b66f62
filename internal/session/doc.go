// Package session wires the protocol components for one colony session: the
// multiplexer, the participant tracker, the sequencing machine, the minigame
// registry and, when offline, the local simulator standing in for the
// authoritative peer.
//
// All component work runs on the session Loop. Close releases every
// subscription the session acquired.
package session
