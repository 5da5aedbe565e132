package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tickstream-protocol/tickstream-go/pkg/log"
)

// writeCapture writes a small capture file and returns its path.
func writeCapture(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.cbor")
	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return path
}

func sampleEvents() []log.Event {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []log.Event{
		{
			Timestamp:    base,
			ConnectionID: "conn-aaaa-1111",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			User:         "alice",
			Message:      &log.MessageEvent{KindName: "CONNECTION_REQUEST"},
		},
		{
			Timestamp:    base.Add(time.Second),
			ConnectionID: "conn-aaaa-1111",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			User:         "alice",
			Message: &log.MessageEvent{
				KindName:   "LIVE_DATA_UPDATE",
				ItemID:     "AAPL",
				Scheme:     "Raw",
				FieldCount: 3,
			},
		},
		{
			Timestamp:    base.Add(2 * time.Second),
			ConnectionID: "conn-bbbb-2222",
			Layer:        log.LayerServer,
			Category:     log.CategoryError,
			Error:        &log.ErrorEvent{Message: "unexpected message"},
		},
	}
}

func TestRunViewAll(t *testing.T) {
	path := writeCapture(t, sampleEvents())

	var out bytes.Buffer
	if err := RunView(path, Filter{}, &out); err != nil {
		t.Fatalf("RunView() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{"CONNECTION_REQUEST", "LIVE_DATA_UPDATE", "Key: Raw/AAPL", "unexpected message", "conn-aaaa"} {
		if !strings.Contains(text, want) {
			t.Errorf("view output missing %q", want)
		}
	}
}

func TestRunViewFiltered(t *testing.T) {
	path := writeCapture(t, sampleEvents())

	filter, err := ParseFilter("", "", "error", "", "")
	if err != nil {
		t.Fatalf("ParseFilter() error = %v", err)
	}

	var out bytes.Buffer
	if err := RunView(path, filter, &out); err != nil {
		t.Fatalf("RunView() error = %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "unexpected message") {
		t.Error("filtered view lost the error event")
	}
	if strings.Contains(text, "CONNECTION_REQUEST") {
		t.Error("filtered view kept a message event")
	}
}

func TestParseFilterRejectsBadValues(t *testing.T) {
	if _, err := ParseFilter("cloud", "", "", "", ""); err == nil {
		t.Error("ParseFilter accepted bad layer")
	}
	if _, err := ParseFilter("", "sideways", "", "", ""); err == nil {
		t.Error("ParseFilter accepted bad direction")
	}
	if _, err := ParseFilter("", "", "mystery", "", ""); err == nil {
		t.Error("ParseFilter accepted bad category")
	}
}

func TestRunFilterWritesSubset(t *testing.T) {
	path := writeCapture(t, sampleEvents())
	output := filepath.Join(t.TempDir(), "filtered.cbor")

	filter, err := ParseFilter("wire", "", "", "", "")
	if err != nil {
		t.Fatalf("ParseFilter() error = %v", err)
	}
	if err := RunFilter(path, output, filter); err != nil {
		t.Fatalf("RunFilter() error = %v", err)
	}

	reader, err := log.NewReader(output)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err != nil {
			break
		}
		if event.Layer != log.LayerWire {
			t.Errorf("filtered capture contains layer %s", event.Layer)
		}
		count++
	}
	if count != 2 {
		t.Errorf("filtered capture has %d events, want 2", count)
	}
}

func TestRunStats(t *testing.T) {
	path := writeCapture(t, sampleEvents())

	var out bytes.Buffer
	if err := RunStats(path, &out); err != nil {
		t.Fatalf("RunStats() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"Total Events: 3",
		"Connections: 2",
		"LIVE_DATA_UPDATE:",
		"Errors: 1",
		"User: alice",
		"Updates sent: 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("stats output missing %q", want)
		}
	}
}

func TestFilterMatch(t *testing.T) {
	events := sampleEvents()

	byUser := Filter{User: "alice"}
	if !byUser.Match(events[0]) || byUser.Match(events[2]) {
		t.Error("user filter misbehaved")
	}

	byConn := Filter{ConnPrefix: "conn-bbbb"}
	if byConn.Match(events[0]) || !byConn.Match(events[2]) {
		t.Error("connection prefix filter misbehaved")
	}
}
