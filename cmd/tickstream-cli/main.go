// Command tickstream-cli is an interactive client for live data
// servers: connect and authenticate, request snapshots, subscribe to
// keys, and watch updates arrive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
	"github.com/tickstream-protocol/tickstream-go/pkg/transport"
	"github.com/tickstream-protocol/tickstream-go/pkg/version"
	"github.com/tickstream-protocol/tickstream-go/pkg/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tickstream-cli:", err)
		os.Exit(1)
	}
}

func run() error {
	address := flag.String("address", "localhost:9125", "server address")
	user := flag.String("user", "cli", "user name for the handshake")
	flag.Parse()

	session, err := connect(*address, *user)
	if err != nil {
		return err
	}
	defer session.close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "tickstream> ",
		HistoryFile: historyFile(),
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("snapshot"),
			readline.PcItem("subscribe"),
			readline.PcItem("servers"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	session.setOutput(rl.Stdout())

	fmt.Fprintf(rl.Stdout(), "connected to %s as %q\n", *address, *user)
	printHandshake(rl.Stdout(), session.handshake)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}
		if done := session.dispatch(rl.Stdout(), strings.Fields(line)); done {
			return nil
		}
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.tickstream_history"
}

// session is one authenticated connection plus the receive loop that
// routes responses to waiting commands and prints pushed updates.
type session struct {
	conn      *transport.ClientConn
	handshake *wire.ConnectionResponse

	mu      sync.Mutex
	waiters map[string]chan []byte
	output  io.Writer
}

// connect dials, performs the handshake, and starts the receive loop.
func connect(address, user string) (*session, error) {
	client := transport.NewClient(transport.ClientConfig{ConnectTimeout: 10 * time.Second})
	conn, err := client.Connect(context.Background(), address)
	if err != nil {
		return nil, err
	}

	payload, err := wire.EncodeConnectionRequest(&wire.ConnectionRequest{UserName: user})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Send(payload); err != nil {
		conn.Close()
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	data, err := conn.Receive()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("waiting for handshake response: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	resp, err := wire.DecodeConnectionResponse(data)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bad handshake response: %w", err)
	}
	if !resp.Result.IsSuccess() {
		conn.Close()
		return nil, fmt.Errorf("handshake rejected: %s", resp.Result)
	}
	if id, ok := resp.Capabilities["protocol"]; ok {
		major, err := version.MajorFromIdentifier(id)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("server advertises unknown protocol %q", id)
		}
		ours, _ := version.Parse(version.Current)
		if major != ours.Major {
			conn.Close()
			return nil, fmt.Errorf("server speaks %s, client speaks %s", id, version.CurrentIdentifier())
		}
	}

	s := &session{
		conn:      conn,
		handshake: resp,
		waiters:   make(map[string]chan []byte),
		output:    os.Stdout,
	}
	go s.receiveLoop()
	return s, nil
}

func (s *session) close() {
	s.conn.Close()
}

// receiveLoop routes command responses to their waiters and prints
// live updates as they arrive.
func (s *session) receiveLoop() {
	for {
		data, err := s.conn.Receive()
		if err != nil {
			if !s.conn.Closed() {
				fmt.Fprintf(s.out(), "\nconnection lost: %v\n", err)
			}
			return
		}

		kind, err := wire.PeekMessageKind(data)
		if err != nil {
			continue
		}
		switch kind {
		case wire.KindSnapshotResponse, wire.KindSubscriptionResponse:
			s.deliver(correlationID(kind, data), data)
		case wire.KindLiveDataUpdate:
			if update, err := wire.DecodeLiveDataUpdate(data); err == nil {
				fmt.Fprintf(s.out(), "\n[%s] %s\n", update.Spec(), formatFields(update.Values))
			}
		}
	}
}

func correlationID(kind wire.MessageKind, data []byte) string {
	switch kind {
	case wire.KindSnapshotResponse:
		if resp, err := wire.DecodeSnapshotResponse(data); err == nil {
			return resp.CorrelationID
		}
	case wire.KindSubscriptionResponse:
		if resp, err := wire.DecodeSubscriptionResponse(data); err == nil {
			return resp.CorrelationID
		}
	}
	return ""
}

func (s *session) setOutput(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = w
}

func (s *session) out() io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// deliver hands a response to the command waiting on its correlation ID.
func (s *session) deliver(corrID string, data []byte) {
	if corrID == "" {
		return
	}
	s.mu.Lock()
	ch := s.waiters[corrID]
	delete(s.waiters, corrID)
	s.mu.Unlock()
	if ch != nil {
		ch <- data
	}
}

// request sends a message and waits for the response carrying corrID.
func (s *session) request(corrID string, payload []byte) ([]byte, error) {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.waiters[corrID] = ch
	s.mu.Unlock()

	if err := s.conn.Send(payload); err != nil {
		s.mu.Lock()
		delete(s.waiters, corrID)
		s.mu.Unlock()
		return nil, err
	}

	select {
	case data := <-ch:
		return data, nil
	case <-time.After(10 * time.Second):
		s.mu.Lock()
		delete(s.waiters, corrID)
		s.mu.Unlock()
		return nil, errors.New("timed out waiting for response")
	}
}

// dispatch executes one command line. Returns true to exit.
func (s *session) dispatch(out io.Writer, args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "quit", "exit":
		return true

	case "help":
		fmt.Fprintln(out, "commands:")
		fmt.Fprintln(out, "  snapshot <scheme> <itemId>   fetch last known values")
		fmt.Fprintln(out, "  subscribe <scheme> <itemId>  subscribe to updates")
		fmt.Fprintln(out, "  servers                      list peer servers")
		fmt.Fprintln(out, "  quit                         close and exit")

	case "servers":
		if len(s.handshake.AvailableServers) == 0 {
			fmt.Fprintln(out, "no peer servers")
			break
		}
		for _, server := range s.handshake.AvailableServers {
			fmt.Fprintln(out, " ", server)
		}

	case "snapshot":
		if len(args) != 3 {
			fmt.Fprintln(out, "usage: snapshot <scheme> <itemId>")
			break
		}
		s.snapshot(out, args[1], args[2])

	case "subscribe":
		if len(args) != 3 {
			fmt.Fprintln(out, "usage: subscribe <scheme> <itemId>")
			break
		}
		s.subscribe(out, args[1], args[2])

	default:
		fmt.Fprintf(out, "unknown command %q, try help\n", args[0])
	}
	return false
}

func (s *session) snapshot(out io.Writer, scheme, itemID string) {
	corrID := uuid.New().String()
	payload, err := wire.EncodeSnapshotRequest(&wire.SnapshotRequest{
		CorrelationID: corrID,
		ItemID:        itemID,
		Scheme:        scheme,
	})
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	data, err := s.request(corrID, payload)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	resp, err := wire.DecodeSnapshotResponse(data)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	if resp.Result != wire.ResultSuccessful {
		fmt.Fprintln(out, "snapshot failed:", resp.Result)
		return
	}
	if len(resp.Values) == 0 {
		fmt.Fprintln(out, "no values yet")
		return
	}
	fmt.Fprintln(out, formatFields(resp.Values))
}

func (s *session) subscribe(out io.Writer, scheme, itemID string) {
	corrID := uuid.New().String()
	payload, err := wire.EncodeSubscriptionRequest(&wire.SubscriptionRequest{
		CorrelationID: corrID,
		ItemID:        itemID,
		Scheme:        scheme,
	})
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	data, err := s.request(corrID, payload)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	resp, err := wire.DecodeSubscriptionResponse(data)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	if resp.Result != wire.ResultSuccessful {
		fmt.Fprintln(out, "subscribe failed:", resp.Result)
		return
	}
	fmt.Fprintln(out, "subscribed")
	if len(resp.Snapshot) > 0 {
		fmt.Fprintln(out, formatFields(resp.Snapshot))
	}
}

func printHandshake(out io.Writer, resp *wire.ConnectionResponse) {
	if len(resp.Capabilities) > 0 {
		for key, value := range resp.Capabilities {
			fmt.Fprintf(out, "  %s: %s\n", key, value)
		}
	}
	if len(resp.AvailableServers) > 0 {
		fmt.Fprintf(out, "  peers: %s\n", strings.Join(resp.AvailableServers, ", "))
	}
}

func formatFields(fields livedata.FieldSet) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Name, f.Value))
	}
	return strings.Join(parts, " ")
}
