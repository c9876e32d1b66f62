// Package mux is the event multiplexer: subscriptions keyed by event id,
// permission-checked inbound dispatch, and locally originated emits.
//
// A Multiplexer is not safe for concurrent use. Drive it from one goroutine
// (see session.Loop); handlers run synchronously on that goroutine and may
// subscribe, unsubscribe or emit while a dispatch is in progress.
package mux
