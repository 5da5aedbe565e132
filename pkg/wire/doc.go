// Package wire defines the CBOR wire protocol between live data clients
// and the distribution server.
//
// Every frame carries exactly one message. A message is a CBOR map with
// integer keys; key 1 always holds the message kind, so a receiver can
// dispatch on the kind without fully decoding the frame.
//
// The protocol has seven message kinds: a connection handshake pair,
// a snapshot request/response pair, a subscription request/response pair,
// and the unsolicited live data update pushed to subscribed clients.
package wire
