// Package transport implements the message framing and TCP plumbing for
// the live data protocol.
//
// Frames are length-prefixed: a 4-byte big-endian payload length followed
// by the payload. The transport does not interpret payloads; message
// encoding lives in pkg/wire.
//
// The Server accepts connections and serializes inbound frames per
// connection: OnMessage is invoked from that connection's read goroutine,
// so no second message for a connection can be observed before its
// handler returns. Outbound writes on a connection are serialized by a
// per-connection write lock.
//
// Transport security is the deployment's concern; a *tls.Config can be
// supplied to run the same framing over TLS.
package transport
