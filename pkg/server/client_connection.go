package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/tickstream-protocol/tickstream-go/pkg/auth"
	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
	"github.com/tickstream-protocol/tickstream-go/pkg/log"
	"github.com/tickstream-protocol/tickstream-go/pkg/transport"
	"github.com/tickstream-protocol/tickstream-go/pkg/wire"
)

// State is the protocol state of a client connection.
type State uint8

const (
	// StateAwaitingHandshake means no connection request has been
	// processed yet. Only a connection request is legal.
	StateAwaitingHandshake State = 0

	// StateActive means the handshake succeeded; snapshot and
	// subscription requests are legal and updates flow.
	StateActive State = 1

	// StateClosed is terminal, reachable from any state.
	StateClosed State = 2
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "AWAITING_HANDSHAKE"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ClientConnection is the per-socket protocol state machine.
//
// Two independent locks protect it, deliberately separate so producers
// depositing pending values never wait on an in-progress socket write:
// the transport framer's write mutex serializes all outbound wire writes
// (handshake replies, command replies, flushed updates), and bufMu guards
// the subscription set and the coalescing pending buffer.
type ClientConnection struct {
	conn   *transport.ServerConn
	server *Server

	// stateMu guards state and identity. HandleMessage runs on the
	// connection's read goroutine; Close may come from anywhere.
	stateMu  sync.Mutex
	state    State
	identity auth.Identity

	// bufMu guards subscriptions, pending and flushQueued. Mutated by
	// the delivery path, not the client's own goroutine.
	bufMu         sync.Mutex
	subscriptions map[livedata.Spec]struct{}
	pending       map[livedata.Spec]livedata.FieldSet
	flushQueued   bool
}

// newClientConnection wraps a freshly accepted transport connection.
func newClientConnection(conn *transport.ServerConn, server *Server) *ClientConnection {
	return &ClientConnection{
		conn:          conn,
		server:        server,
		state:         StateAwaitingHandshake,
		subscriptions: make(map[livedata.Spec]struct{}),
		pending:       make(map[livedata.Spec]livedata.FieldSet),
	}
}

// State returns the current protocol state.
func (c *ClientConnection) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Identity returns the authenticated principal. Zero until the
// handshake succeeds; immutable afterwards.
func (c *ClientConnection) Identity() auth.Identity {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.identity
}

// ConnID returns the transport connection identifier.
func (c *ClientConnection) ConnID() string {
	return c.conn.ConnID()
}

// SubscriptionCount returns the size of the subscription set.
func (c *ClientConnection) SubscriptionCount() int {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	return len(c.subscriptions)
}

// HandleMessage processes one inbound frame. The transport serializes
// calls per connection, so no second message can arrive before the
// handshake handler returns.
func (c *ClientConnection) HandleMessage(data []byte) {
	kind, err := wire.PeekMessageKind(data)
	if err != nil {
		c.fatal(fmt.Errorf("undecodable message: %w", err))
		return
	}

	switch c.State() {
	case StateAwaitingHandshake:
		if kind != wire.KindConnectionRequest {
			// Protocol rule: the first message on a new connection must
			// be a connection request. No response is owed.
			c.fatal(fmt.Errorf("first message was %s, want CONNECTION_REQUEST", kind))
			return
		}
		c.handleHandshake(data)

	case StateActive:
		switch kind {
		case wire.KindSnapshotRequest:
			c.handleSnapshot(data)
		case wire.KindSubscriptionRequest:
			c.handleSubscribe(data)
		default:
			c.fatal(fmt.Errorf("unexpected %s in state ACTIVE", kind))
		}

	case StateClosed:
		// Frames racing a close are dropped.
	}
}

// handleHandshake resolves the client identity and answers the
// connection request. Authentication failure is terminal: the
// NOT_AUTHORIZED response is written, then the connection closes.
func (c *ClientConnection) handleHandshake(data []byte) {
	req, err := wire.DecodeConnectionRequest(data)
	if err != nil {
		c.fatal(fmt.Errorf("bad connection request: %w", err))
		return
	}
	c.logMessage(log.DirectionIn, &log.MessageEvent{KindName: wire.KindConnectionRequest.String()})

	identity, ok := c.server.config.Authenticator.Authenticate(req.UserName)
	if !ok {
		c.server.metrics.handshakeFailed()
		resp := &wire.ConnectionResponse{Result: wire.ResultNotAuthorized}
		c.sendConnectionResponse(resp)
		c.Close()
		return
	}

	c.stateMu.Lock()
	c.identity = identity
	c.state = StateActive
	c.stateMu.Unlock()

	c.logStateChange(StateAwaitingHandshake, StateActive)
	c.server.register(c)

	resp := &wire.ConnectionResponse{
		Result:           wire.ResultNewConnectionSuccess,
		AvailableServers: c.server.availableServers(),
		Capabilities:     c.server.capabilities(),
	}
	c.sendConnectionResponse(resp)
}

// handleSnapshot answers a snapshot request from the last-known-value
// store. It never alters the subscription set.
func (c *ClientConnection) handleSnapshot(data []byte) {
	req, err := wire.DecodeSnapshotRequest(data)
	if err != nil {
		c.fatal(fmt.Errorf("bad snapshot request: %w", err))
		return
	}
	spec := req.Spec()
	c.logMessage(log.DirectionIn, &log.MessageEvent{
		KindName:      wire.KindSnapshotRequest.String(),
		CorrelationID: req.CorrelationID,
		ItemID:        req.ItemID,
		Scheme:        req.Scheme,
	})

	resp := &wire.SnapshotResponse{
		CorrelationID: req.CorrelationID,
		ItemID:        req.ItemID,
		Scheme:        req.Scheme,
	}
	if !c.server.config.Data.IsKnown(spec) {
		resp.Result = wire.ResultNotAvailable
	} else {
		resp.Result = wire.ResultSuccessful
		if fields, ok := c.server.config.Data.Snapshot(spec); ok {
			resp.Values = fields
		}
	}

	payload, err := wire.EncodeSnapshotResponse(resp)
	if err != nil {
		c.fatal(fmt.Errorf("failed to encode snapshot response: %w", err))
		return
	}
	c.send(payload)
	c.logMessage(log.DirectionOut, &log.MessageEvent{
		KindName:      wire.KindSnapshotResponse.String(),
		CorrelationID: resp.CorrelationID,
		ItemID:        resp.ItemID,
		Scheme:        resp.Scheme,
		ResultName:    resp.Result.String(),
		FieldCount:    len(resp.Values),
	})
}

// handleSubscribe answers a subscription request. On success the key
// joins the subscription set before the response is written, and the
// response embeds the current snapshot, so the client never sees a gap
// between the snapshot and the first pushed update.
func (c *ClientConnection) handleSubscribe(data []byte) {
	req, err := wire.DecodeSubscriptionRequest(data)
	if err != nil {
		c.fatal(fmt.Errorf("bad subscription request: %w", err))
		return
	}
	spec := req.Spec()
	c.logMessage(log.DirectionIn, &log.MessageEvent{
		KindName:      wire.KindSubscriptionRequest.String(),
		CorrelationID: req.CorrelationID,
		ItemID:        req.ItemID,
		Scheme:        req.Scheme,
	})

	resp := &wire.SubscriptionResponse{
		CorrelationID: req.CorrelationID,
		ItemID:        req.ItemID,
		Scheme:        req.Scheme,
	}
	if !c.server.config.Data.IsKnown(spec) {
		resp.Result = wire.ResultNotAvailable
	} else {
		c.bufMu.Lock()
		c.subscriptions[spec] = struct{}{}
		c.bufMu.Unlock()

		resp.Result = wire.ResultSuccessful
		if fields, ok := c.server.config.Data.Snapshot(spec); ok {
			resp.Snapshot = fields
		}
	}

	payload, err := wire.EncodeSubscriptionResponse(resp)
	if err != nil {
		c.fatal(fmt.Errorf("failed to encode subscription response: %w", err))
		return
	}
	c.send(payload)
	c.logMessage(log.DirectionOut, &log.MessageEvent{
		KindName:      wire.KindSubscriptionResponse.String(),
		CorrelationID: resp.CorrelationID,
		ItemID:        resp.ItemID,
		Scheme:        resp.Scheme,
		ResultName:    resp.Result.String(),
		FieldCount:    len(resp.Snapshot),
	})
}

// LiveDataReceived deposits a normalized update for delivery. Called
// from the fan-out path, never the connection's own goroutine. Returns
// true when a flush should be scheduled; a pending value for the same
// key is replaced, not queued, and a connection with a flush already
// owed is not scheduled twice.
func (c *ClientConnection) LiveDataReceived(spec livedata.Spec, fields livedata.FieldSet) bool {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()

	if _, subscribed := c.subscriptions[spec]; !subscribed {
		return false
	}
	if _, hadPending := c.pending[spec]; hadPending {
		c.server.metrics.updateCoalesced()
	}
	c.pending[spec] = fields

	if c.flushQueued {
		return false
	}
	c.flushQueued = true
	return true
}

// Flush drains the pending buffer and writes one update message per key.
// Post-removal and post-close flushes degrade to no-ops: writes to a
// closed socket are swallowed.
func (c *ClientConnection) Flush() {
	c.bufMu.Lock()
	drained := c.pending
	c.pending = make(map[livedata.Spec]livedata.FieldSet, len(drained))
	c.flushQueued = false
	c.bufMu.Unlock()

	if len(drained) == 0 || c.State() == StateClosed {
		return
	}

	for spec, fields := range drained {
		msg := &wire.LiveDataUpdate{
			ItemID: spec.ItemID,
			Scheme: spec.Scheme,
			Values: fields,
		}
		payload, err := wire.EncodeLiveDataUpdate(msg)
		if err != nil {
			continue
		}
		if err := c.send(payload); err != nil {
			// Socket gone mid-flush; the disconnect path cleans up.
			return
		}
		c.server.metrics.updateSent()
		c.logMessage(log.DirectionOut, &log.MessageEvent{
			KindName:   wire.KindLiveDataUpdate.String(),
			ItemID:     spec.ItemID,
			Scheme:     spec.Scheme,
			FieldCount: len(fields),
		})
	}
}

// Close moves the connection to CLOSED and tears down the socket.
// Safe to call from any goroutine and more than once.
func (c *ClientConnection) Close() {
	c.stateMu.Lock()
	if c.state == StateClosed {
		c.stateMu.Unlock()
		return
	}
	old := c.state
	c.state = StateClosed
	c.stateMu.Unlock()

	c.logStateChange(old, StateClosed)
	c.conn.Close()
}

// send writes one wire message; the transport's per-connection write
// lock serializes it against replies and flushes.
func (c *ClientConnection) send(payload []byte) error {
	return c.conn.Send(payload)
}

// sendConnectionResponse writes the handshake response, logging it.
func (c *ClientConnection) sendConnectionResponse(resp *wire.ConnectionResponse) {
	payload, err := wire.EncodeConnectionResponse(resp)
	if err != nil {
		return
	}
	_ = c.send(payload)
	c.logMessage(log.DirectionOut, &log.MessageEvent{
		KindName:   wire.KindConnectionResponse.String(),
		ResultName: resp.Result.String(),
	})
}

// fatal records a protocol violation and tears the connection down with
// no response.
func (c *ClientConnection) fatal(err error) {
	c.server.metrics.protocolViolation()
	if logger := c.server.config.Logger; logger != nil {
		logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: c.conn.ConnID(),
			Layer:        log.LayerServer,
			Category:     log.CategoryError,
			RemoteAddr:   c.conn.RemoteAddr().String(),
			User:         c.Identity().UserName,
			Error:        &log.ErrorEvent{Message: err.Error()},
		})
	}
	c.Close()
}

// logMessage records a decoded wire message event.
func (c *ClientConnection) logMessage(direction log.Direction, msg *log.MessageEvent) {
	logger := c.server.config.Logger
	if logger == nil {
		return
	}
	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.conn.ConnID(),
		Direction:    direction,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		RemoteAddr:   c.conn.RemoteAddr().String(),
		User:         c.Identity().UserName,
		Message:      msg,
	})
}

// logStateChange records a protocol state transition.
func (c *ClientConnection) logStateChange(old, next State) {
	logger := c.server.config.Logger
	if logger == nil {
		return
	}
	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.conn.ConnID(),
		Layer:        log.LayerServer,
		Category:     log.CategoryState,
		RemoteAddr:   c.conn.RemoteAddr().String(),
		User:         c.Identity().UserName,
		StateChange: &log.StateChangeEvent{
			OldState: old.String(),
			NewState: next.String(),
		},
	})
}
