// Package audit relays guard decision events to pluggable sinks without blocking
// the request path.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, logrus, no-op).
//   - [Dispatcher]: buffered async relay, drop-if-full or block-if-full.
//   - [Event]: one authorize/refresh/logout record.
//
// Events never carry credential values. Deciding which events to emit belongs to
// the Engine.
package audit
