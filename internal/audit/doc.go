// Package audit buffers security events and relays them to a sink.
//
// The Engine decides which events exist; this package only moves them.
// Sinks provided here write to a channel, a JSON line stream, or a zap
// logger. The Dispatcher never filters and never performs I/O itself.
package audit
