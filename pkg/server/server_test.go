package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickstream-protocol/tickstream-go/pkg/auth"
	"github.com/tickstream-protocol/tickstream-go/pkg/distributor"
	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
	"github.com/tickstream-protocol/tickstream-go/pkg/lkv"
	"github.com/tickstream-protocol/tickstream-go/pkg/normalization"
	"github.com/tickstream-protocol/tickstream-go/pkg/transport"
	"github.com/tickstream-protocol/tickstream-go/pkg/wire"
)

func rawQuote(bid, ask float64) livedata.FieldSet {
	var fs livedata.FieldSet
	fs = fs.Set(livedata.FieldBid, bid)
	fs = fs.Set(livedata.FieldAsk, ask)
	return fs
}

// newTestServer starts a server over a fresh distributor on an
// ephemeral port.
func newTestServer(t *testing.T, authenticator auth.Authenticator) (*Server, *distributor.Distributor) {
	t.Helper()

	dist := distributor.New(lkv.NewMemoryProvider(), normalization.PassThrough("Raw"))
	srv, err := New(Config{
		Address:       "127.0.0.1:0",
		Data:          dist,
		Authenticator: authenticator,
	})
	require.NoError(t, err)
	dist.OnUpdate(srv.LiveDataReceived)

	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv, dist
}

// dial opens a raw transport connection to the server.
func dial(t *testing.T, srv *Server) *transport.ClientConn {
	t.Helper()
	client := transport.NewClient(transport.ClientConfig{ConnectTimeout: 2 * time.Second})
	conn, err := client.Connect(context.Background(), srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// handshake performs a successful handshake for user.
func handshake(t *testing.T, conn *transport.ClientConn, user string) *wire.ConnectionResponse {
	t.Helper()
	payload, err := wire.EncodeConnectionRequest(&wire.ConnectionRequest{UserName: user})
	require.NoError(t, err)
	require.NoError(t, conn.Send(payload))

	data, err := conn.Receive()
	require.NoError(t, err)
	resp, err := wire.DecodeConnectionResponse(data)
	require.NoError(t, err)
	return resp
}

// authedClient returns the server-side state machine for the single
// authenticated connection.
func authedClient(t *testing.T, srv *Server) *ClientConnection {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		srv.mu.RLock()
		for c := range srv.registry {
			srv.mu.RUnlock()
			return c
		}
		srv.mu.RUnlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no authenticated connection registered")
	return nil
}

func TestHandshakeSuccess(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := dial(t, srv)

	resp := handshake(t, conn, "trader1")

	assert.Equal(t, wire.ResultNewConnectionSuccess, resp.Result)
	assert.Equal(t, "tickstream/1", resp.Capabilities["protocol"])
	assert.Equal(t, "Raw", resp.Capabilities["schemes"])

	c := authedClient(t, srv)
	assert.Equal(t, StateActive, c.State())
	assert.Equal(t, "trader1", c.Identity().UserName)
	assert.Equal(t, 1, srv.ClientCount())
	assert.Equal(t, []string{"trader1"}, srv.ActiveUsers())
}

func TestHandshakeNotAuthorized(t *testing.T) {
	srv, _ := newTestServer(t, auth.NewStaticUsers("alice"))
	conn := dial(t, srv)

	payload, err := wire.EncodeConnectionRequest(&wire.ConnectionRequest{UserName: "mallory"})
	require.NoError(t, err)
	require.NoError(t, conn.Send(payload))

	data, err := conn.Receive()
	require.NoError(t, err)
	resp, err := wire.DecodeConnectionResponse(data)
	require.NoError(t, err)
	assert.Equal(t, wire.ResultNotAuthorized, resp.Result)

	// The server closes the connection after the rejection.
	_, err = conn.Receive()
	assert.Error(t, err)
	assert.Equal(t, 0, srv.ClientCount())
	assert.Equal(t, int64(1), srv.Stats().HandshakeFailures)
}

func TestFirstMessageMustBeHandshake(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := dial(t, srv)

	// A command before the handshake is a protocol violation: the
	// connection drops with no response.
	payload, err := wire.EncodeSnapshotRequest(&wire.SnapshotRequest{
		CorrelationID: "c1", ItemID: "AAPL", Scheme: "Raw",
	})
	require.NoError(t, err)
	require.NoError(t, conn.Send(payload))

	_, err = conn.Receive()
	assert.Error(t, err)
	assert.Equal(t, int64(1), srv.Stats().ProtocolViolations)
}

func TestSecondHandshakeIsFatal(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := dial(t, srv)
	handshake(t, conn, "trader1")

	payload, err := wire.EncodeConnectionRequest(&wire.ConnectionRequest{UserName: "trader1"})
	require.NoError(t, err)
	require.NoError(t, conn.Send(payload))

	_, err = conn.Receive()
	assert.Error(t, err)
	assert.Equal(t, int64(1), srv.Stats().ProtocolViolations)
}

func snapshotRequest(t *testing.T, conn *transport.ClientConn, corrID, scheme, itemID string) *wire.SnapshotResponse {
	t.Helper()
	payload, err := wire.EncodeSnapshotRequest(&wire.SnapshotRequest{
		CorrelationID: corrID, ItemID: itemID, Scheme: scheme,
	})
	require.NoError(t, err)
	require.NoError(t, conn.Send(payload))

	data, err := conn.Receive()
	require.NoError(t, err)
	resp, err := wire.DecodeSnapshotResponse(data)
	require.NoError(t, err)
	return resp
}

func TestSnapshotUnknownKey(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := dial(t, srv)
	handshake(t, conn, "trader1")

	resp := snapshotRequest(t, conn, "c1", "Raw", "NOPE")

	assert.Equal(t, wire.ResultNotAvailable, resp.Result)
	assert.Equal(t, "c1", resp.CorrelationID)
	assert.Empty(t, resp.Values)
}

func TestSnapshotKnownKeyNoValueYet(t *testing.T) {
	provider := lkv.NewMemoryProvider()
	provider.RegisterKnownID("AAPL")
	dist := distributor.New(provider, normalization.PassThrough("Raw"))
	dist.Bootstrap()

	srv, err := New(Config{Address: "127.0.0.1:0", Data: dist})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })

	conn := dial(t, srv)
	handshake(t, conn, "trader1")

	// Known key without a tick yet: success, no values.
	resp := snapshotRequest(t, conn, "c1", "Raw", "AAPL")
	assert.Equal(t, wire.ResultSuccessful, resp.Result)
	assert.Empty(t, resp.Values)
}

func TestSnapshotReturnsLastKnownValue(t *testing.T) {
	srv, dist := newTestServer(t, nil)
	dist.UpdateReceived("AAPL", rawQuote(99, 101))

	conn := dial(t, srv)
	handshake(t, conn, "trader1")

	resp := snapshotRequest(t, conn, "c1", "Raw", "AAPL")
	require.Equal(t, wire.ResultSuccessful, resp.Result)

	bid, ok := resp.Values.Float64(livedata.FieldBid)
	require.True(t, ok)
	assert.Equal(t, 99.0, bid)

	// Snapshots are idempotent reads; a second request sees the same
	// state and no subscription is created.
	again := snapshotRequest(t, conn, "c2", "Raw", "AAPL")
	assert.Equal(t, resp.Values, again.Values)
	assert.Equal(t, 0, authedClient(t, srv).SubscriptionCount())
}

func subscribeRequest(t *testing.T, conn *transport.ClientConn, corrID, scheme, itemID string) *wire.SubscriptionResponse {
	t.Helper()
	payload, err := wire.EncodeSubscriptionRequest(&wire.SubscriptionRequest{
		CorrelationID: corrID, ItemID: itemID, Scheme: scheme,
	})
	require.NoError(t, err)
	require.NoError(t, conn.Send(payload))

	data, err := conn.Receive()
	require.NoError(t, err)
	resp, err := wire.DecodeSubscriptionResponse(data)
	require.NoError(t, err)
	return resp
}

func TestSubscribeUnknownKey(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := dial(t, srv)
	handshake(t, conn, "trader1")

	resp := subscribeRequest(t, conn, "c1", "Raw", "NOPE")
	assert.Equal(t, wire.ResultNotAvailable, resp.Result)
	assert.Equal(t, 0, authedClient(t, srv).SubscriptionCount())
}

func TestSubscribeThenReceiveUpdates(t *testing.T) {
	srv, dist := newTestServer(t, nil)
	dist.UpdateReceived("AAPL", rawQuote(99, 101))

	conn := dial(t, srv)
	handshake(t, conn, "trader1")

	resp := subscribeRequest(t, conn, "c1", "Raw", "AAPL")
	require.Equal(t, wire.ResultSuccessful, resp.Result)

	// The response primes the client with the current snapshot.
	bid, ok := resp.Snapshot.Float64(livedata.FieldBid)
	require.True(t, ok)
	assert.Equal(t, 99.0, bid)

	// The next tick arrives as a pushed update.
	dist.UpdateReceived("AAPL", rawQuote(100, 102))

	data, err := conn.Receive()
	require.NoError(t, err)
	kind, err := wire.PeekMessageKind(data)
	require.NoError(t, err)
	require.Equal(t, wire.KindLiveDataUpdate, kind)

	update, err := wire.DecodeLiveDataUpdate(data)
	require.NoError(t, err)
	assert.Equal(t, livedata.NewSpec("Raw", "AAPL"), update.Spec())
	bid, _ = update.Values.Float64(livedata.FieldBid)
	assert.Equal(t, 100.0, bid)
}

func TestUpdatesNotSentToNonSubscribers(t *testing.T) {
	srv, dist := newTestServer(t, nil)
	dist.UpdateReceived("AAPL", rawQuote(99, 101))
	dist.UpdateReceived("MSFT", rawQuote(400, 401))

	conn := dial(t, srv)
	handshake(t, conn, "trader1")
	subscribeRequest(t, conn, "c1", "Raw", "MSFT")

	// Tick an unsubscribed key, then the subscribed one; only the
	// latter comes through.
	dist.UpdateReceived("AAPL", rawQuote(99.5, 101.5))
	dist.UpdateReceived("MSFT", rawQuote(401, 402))

	data, err := conn.Receive()
	require.NoError(t, err)
	update, err := wire.DecodeLiveDataUpdate(data)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", update.ItemID)
}

func TestCoalescingLastValueWins(t *testing.T) {
	srv, dist := newTestServer(t, nil)
	dist.UpdateReceived("AAPL", rawQuote(99, 101))

	conn := dial(t, srv)
	handshake(t, conn, "trader1")
	subscribeRequest(t, conn, "c1", "Raw", "AAPL")

	c := authedClient(t, srv)

	// Deposit three updates before any flush runs: one pending entry
	// per key, replaced in place; only the first deposit owes a flush.
	first := c.LiveDataReceived(livedata.NewSpec("Raw", "AAPL"), rawQuote(1, 2))
	second := c.LiveDataReceived(livedata.NewSpec("Raw", "AAPL"), rawQuote(3, 4))
	third := c.LiveDataReceived(livedata.NewSpec("Raw", "AAPL"), rawQuote(5, 6))
	assert.True(t, first, "first deposit should owe a flush")
	assert.False(t, second, "second deposit should coalesce")
	assert.False(t, third, "third deposit should coalesce")

	c.Flush()

	data, err := conn.Receive()
	require.NoError(t, err)
	update, err := wire.DecodeLiveDataUpdate(data)
	require.NoError(t, err)
	bid, _ := update.Values.Float64(livedata.FieldBid)
	assert.Equal(t, 5.0, bid, "latest deposit wins")

	// Nothing further is pending.
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err = conn.Receive()
	assert.Error(t, err, "no second update expected")

	assert.Equal(t, int64(2), srv.Stats().UpdatesCoalesced)
}

func TestDepositForUnsubscribedKeyIgnored(t *testing.T) {
	srv, dist := newTestServer(t, nil)
	dist.UpdateReceived("AAPL", rawQuote(99, 101))

	conn := dial(t, srv)
	handshake(t, conn, "trader1")

	c := authedClient(t, srv)
	owed := c.LiveDataReceived(livedata.NewSpec("Raw", "AAPL"), rawQuote(1, 2))
	assert.False(t, owed, "deposit without subscription should be dropped")
}

func TestRemoveClientFlushIsNoOp(t *testing.T) {
	srv, dist := newTestServer(t, nil)
	dist.UpdateReceived("AAPL", rawQuote(99, 101))

	conn := dial(t, srv)
	handshake(t, conn, "trader1")
	subscribeRequest(t, conn, "c1", "Raw", "AAPL")

	c := authedClient(t, srv)
	c.LiveDataReceived(livedata.NewSpec("Raw", "AAPL"), rawQuote(1, 2))

	srv.RemoveClient(c)
	assert.Equal(t, StateClosed, c.State())

	// A flush scheduled before removal lands after it; it must do
	// nothing and must not panic.
	c.Flush()

	// The disconnect propagates and the registry empties.
	deadline := time.Now().Add(2 * time.Second)
	for srv.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, srv.ClientCount())
}

func TestClientDisconnectCleansRegistry(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	conn := dial(t, srv)
	handshake(t, conn, "trader1")
	require.Equal(t, 1, srv.ClientCount())

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, srv.ClientCount())
	assert.Empty(t, srv.ActiveUsers())
}
