// Package log provides structured protocol event logging for the live
// data server.
//
// The server emits one Event per protocol-visible occurrence: a frame on
// the wire, a decoded message, a connection state change, or an error.
// Applications receive events through the Logger interface and can route
// them to slog for development or to a CBOR capture file for offline
// analysis of a trading session.
package log
