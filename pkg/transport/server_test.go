package transport

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
)

// startTestServer runs a server on an ephemeral port and returns it with
// its address.
func startTestServer(t *testing.T, config ServerConfig) *Server {
	t.Helper()
	config.Address = "127.0.0.1:0"
	server := NewServer(config)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func TestServerEchoRoundTrip(t *testing.T) {
	server := startTestServer(t, ServerConfig{
		OnMessage: func(conn *ServerConn, msg []byte) {
			// Echo back.
			if err := conn.Send(msg); err != nil {
				t.Errorf("Send() error = %v", err)
			}
		},
	})

	client := NewClient(ClientConfig{})
	conn, err := client.Connect(context.Background(), server.Addr().String())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Close()

	payload := []byte("ping")
	if err := conn.Send(payload); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := conn.Receive()
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Receive() = %q, want %q", got, payload)
	}
}

func TestServerConnectDisconnectCallbacks(t *testing.T) {
	var mu sync.Mutex
	var connects, disconnects int
	connected := make(chan struct{}, 1)
	disconnected := make(chan struct{}, 1)

	server := startTestServer(t, ServerConfig{
		OnConnect: func(conn *ServerConn) {
			mu.Lock()
			connects++
			mu.Unlock()
			connected <- struct{}{}
		},
		OnDisconnect: func(conn *ServerConn) {
			mu.Lock()
			disconnects++
			mu.Unlock()
			disconnected <- struct{}{}
		},
	})

	client := NewClient(ClientConfig{})
	conn, err := client.Connect(context.Background(), server.Addr().String())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnect not called")
	}
	if server.ConnectionCount() != 1 {
		t.Errorf("ConnectionCount() = %d, want 1", server.ConnectionCount())
	}

	conn.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if connects != 1 || disconnects != 1 {
		t.Errorf("connects = %d, disconnects = %d, want 1, 1", connects, disconnects)
	}
}

func TestServerStopClosesConnections(t *testing.T) {
	server := startTestServer(t, ServerConfig{})

	client := NewClient(ClientConfig{})
	conn, err := client.Connect(context.Background(), server.Addr().String())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Close()

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// The client's next read fails once the server side is gone.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Receive(); err == nil {
		t.Error("Receive() after server stop succeeded, want error")
	}
}

func TestServerDoubleStart(t *testing.T) {
	server := startTestServer(t, ServerConfig{})
	if err := server.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded, want error")
	}
}
