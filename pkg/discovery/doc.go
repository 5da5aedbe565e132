// Package discovery advertises live data servers on the local network
// and browses for peers via mDNS.
//
// The server advertises itself as a "_tickstream._tcp" service; the peer
// list collected by the Registry backs the availableServers field of the
// connection handshake response. Discovery is best-effort: registration
// or browse failures never prevent the server from serving.
package discovery
