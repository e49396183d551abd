// Package audit relays session and refresh lifecycle events to a sink without
// blocking the request path.
//
// [Dispatcher] buffers events and forwards them from one goroutine; in
// drop-if-full mode a full buffer drops the event and counts it.
//
// This package never decides which events to emit and never imports dashAuth.
package audit
