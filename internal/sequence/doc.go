// Package sequence implements the per-session phase machine that moves the
// local participant from roaming the colony through difficulty confirmation,
// the hand-placement check, loading and play, to a result screen and back.
//
// Every event-driven transition is guarded by its source phase, so duplicate
// or out-of-order deliveries are ignored rather than applied twice. The
// machine runs on the multiplexer's dispatch thread and is not safe for
// concurrent use.
package sequence
