package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tickstream-protocol/tickstream-go/pkg/auth"
	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
	"github.com/tickstream-protocol/tickstream-go/pkg/log"
	"github.com/tickstream-protocol/tickstream-go/pkg/transport"
	"github.com/tickstream-protocol/tickstream-go/pkg/version"
	"github.com/tickstream-protocol/tickstream-go/pkg/worker"
)

// flushStopTimeout bounds how long Stop waits for queued flushes.
const flushStopTimeout = 5 * time.Second

// Config configures a live data server.
type Config struct {
	// Address to listen on (default ":9125").
	Address string

	// TLSConfig enables TLS on the listener when non-nil.
	TLSConfig *tls.Config

	// MaxMessageSize caps inbound frames (default 256KB).
	MaxMessageSize uint32

	// Data answers key-known and snapshot queries, normally the
	// distributor.
	Data DataSource

	// Authenticator resolves handshake identities. Defaults to
	// AllowAll when nil.
	Authenticator auth.Authenticator

	// Peers lists other reachable servers for the handshake response
	// (optional).
	Peers PeerLister

	// Logger receives protocol events (optional).
	Logger log.Logger

	// AppLogger is the application logger. Defaults to slog.Default.
	AppLogger *slog.Logger

	// FlushWorkers and FlushQueueSize bound the delivery pool.
	// Zero values take the pool defaults.
	FlushWorkers   int
	FlushQueueSize int

	// Metrics registers delivery metrics when non-nil.
	Metrics MetricsConfig
}

// Server accepts client connections, runs the per-connection protocol
// state machine, and fans normalized updates out to subscribers.
//
// The fan-out path deposits into each connection's coalescing buffer
// inline, then hands the actual socket writes to a bounded worker pool,
// so one slow consumer cannot stall the feed.
type Server struct {
	config Config
	logger *slog.Logger

	transport *transport.Server
	flushPool *worker.Pool[*ClientConnection]
	metrics   *metrics

	// conns maps every live socket to its state machine; registry holds
	// only those past the handshake, the fan-out set.
	mu       sync.RWMutex
	conns    map[*transport.ServerConn]*ClientConnection
	registry map[*ClientConnection]struct{}
}

// New creates a live data server.
func New(config Config) (*Server, error) {
	if config.Data == nil {
		return nil, errors.New("server: Data source is required")
	}
	if config.Authenticator == nil {
		config.Authenticator = auth.AllowAll{}
	}
	if config.AppLogger == nil {
		config.AppLogger = slog.Default()
	}

	s := &Server{
		config:   config,
		logger:   config.AppLogger,
		conns:    make(map[*transport.ServerConn]*ClientConnection),
		registry: make(map[*ClientConnection]struct{}),
		metrics:  newMetrics(config.Metrics),
	}

	s.transport = transport.NewServer(transport.ServerConfig{
		Address:        config.Address,
		TLSConfig:      config.TLSConfig,
		MaxMessageSize: config.MaxMessageSize,
		Logger:         config.Logger,
		OnConnect:      s.onConnect,
		OnDisconnect:   s.onDisconnect,
		OnMessage:      s.onMessage,
		OnError:        s.onError,
	})

	var poolOpts []worker.Option[*ClientConnection]
	if config.Metrics.Registerer != nil {
		poolOpts = append(poolOpts,
			worker.WithRegisterer[*ClientConnection](config.Metrics.Registerer, "tickstream_flush"))
	}
	s.flushPool = worker.NewPool(config.FlushWorkers, config.FlushQueueSize,
		func(_ context.Context, c *ClientConnection) error {
			c.Flush()
			return nil
		}, poolOpts...)
	return s, nil
}

// Start begins listening and starts the flush pool.
func (s *Server) Start(ctx context.Context) error {
	if err := s.flushPool.Start(ctx); err != nil {
		return fmt.Errorf("starting flush pool: %w", err)
	}
	if err := s.transport.Start(ctx); err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	s.logger.Info("live data server started", "address", s.Addr())
	return nil
}

// Stop closes the listener, all connections, and the flush pool.
func (s *Server) Stop() error {
	err := s.transport.Stop()
	if stopErr := s.flushPool.Stop(flushStopTimeout); stopErr != nil && err == nil {
		err = stopErr
	}
	s.logger.Info("live data server stopped")
	return err
}

// Addr returns the bound listen address, nil before Start.
func (s *Server) Addr() string {
	if addr := s.transport.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// ClientCount returns the number of authenticated clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

// ActiveUsers returns the distinct user names of authenticated clients.
func (s *Server) ActiveUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{}, len(s.registry))
	users := make([]string, 0, len(s.registry))
	for c := range s.registry {
		name := c.Identity().UserName
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		users = append(users, name)
	}
	return users
}

// LiveDataReceived fans a normalized update out to every subscribed
// client. Wire it to the distributor's update callback. Deposit is
// inline and cheap; socket writes happen on the flush pool. When the
// pool queue is full the flush is retried inline so no deposited value
// is stranded.
func (s *Server) LiveDataReceived(spec livedata.Spec, fields livedata.FieldSet) {
	s.metrics.tickRouted()

	s.mu.RLock()
	targets := make([]*ClientConnection, 0, len(s.registry))
	for c := range s.registry {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if !c.LiveDataReceived(spec, fields) {
			continue
		}
		if err := s.flushPool.Submit(c); err != nil {
			s.metrics.flushQueueFull()
			c.Flush()
		}
	}
}

// RemoveClient closes a connection and drops it from the fan-out set.
// Any flush still queued for it afterwards finds an empty buffer and a
// closed socket, degrading to a no-op.
func (s *Server) RemoveClient(c *ClientConnection) {
	c.Close()
}

// Stats returns a snapshot of delivery counters.
func (s *Server) Stats() Stats {
	return s.metrics.snapshot()
}

// register adds an authenticated connection to the fan-out set.
func (s *Server) register(c *ClientConnection) {
	s.mu.Lock()
	s.registry[c] = struct{}{}
	s.mu.Unlock()
	s.metrics.clientConnected()
	s.logger.Info("client authenticated",
		"connectionId", c.ConnID(),
		"user", c.Identity().UserName,
	)
}

// onConnect tracks a freshly accepted socket; the protocol state
// machine starts in AWAITING_HANDSHAKE.
func (s *Server) onConnect(conn *transport.ServerConn) {
	c := newClientConnection(conn, s)
	s.mu.Lock()
	s.conns[conn] = c
	s.mu.Unlock()
}

// onDisconnect tears down the state machine when the socket dies.
func (s *Server) onDisconnect(conn *transport.ServerConn) {
	s.mu.Lock()
	c, ok := s.conns[conn]
	delete(s.conns, conn)
	if ok {
		if _, registered := s.registry[c]; registered {
			delete(s.registry, c)
			s.metrics.clientDisconnected()
		} else {
			ok = false
		}
	}
	s.mu.Unlock()

	if c != nil {
		c.Close()
	}
	if ok {
		s.logger.Info("client disconnected", "connectionId", conn.ConnID())
	}
}

// onMessage routes an inbound frame to the connection's state machine.
func (s *Server) onMessage(conn *transport.ServerConn, msg []byte) {
	s.mu.RLock()
	c := s.conns[conn]
	s.mu.RUnlock()
	if c == nil {
		return
	}
	c.HandleMessage(msg)
}

// onError surfaces transport errors on the application log.
func (s *Server) onError(conn *transport.ServerConn, err error) {
	if conn != nil {
		s.logger.Warn("transport error", "connectionId", conn.ConnID(), "error", err)
		return
	}
	s.logger.Warn("transport error", "error", err)
}

// availableServers lists peers for the handshake response.
func (s *Server) availableServers() []string {
	if s.config.Peers == nil {
		return nil
	}
	return s.config.Peers.Servers()
}

// capabilities describes this server in the handshake response.
func (s *Server) capabilities() map[string]string {
	caps := map[string]string{
		"protocol": version.CurrentIdentifier(),
		"version":  version.Current,
	}
	if lister, ok := s.config.Data.(interface{ Schemes() []string }); ok {
		if schemes := lister.Schemes(); len(schemes) > 0 {
			caps["schemes"] = strings.Join(schemes, ",")
		}
	}
	return caps
}
