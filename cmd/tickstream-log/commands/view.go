// Package commands implements the tickstream-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/tickstream-protocol/tickstream-go/pkg/log"
)

// Filter specifies criteria for selecting events.
type Filter struct {
	Layer      *log.Layer
	Direction  *log.Direction
	Category   *log.Category
	User       string
	ConnPrefix string
}

// Match reports whether the event passes the filter.
func (f Filter) Match(event log.Event) bool {
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.User != "" && event.User != f.User {
		return false
	}
	if f.ConnPrefix != "" && !strings.HasPrefix(event.ConnectionID, f.ConnPrefix) {
		return false
	}
	return true
}

// ParseFilter builds a Filter from command-line flag values. Empty
// strings mean no constraint.
func ParseFilter(layer, direction, category, user, connPrefix string) (Filter, error) {
	var filter Filter
	filter.User = user
	filter.ConnPrefix = connPrefix

	if layer != "" {
		l, err := parseLayer(layer)
		if err != nil {
			return Filter{}, err
		}
		filter.Layer = &l
	}
	if direction != "" {
		d, err := parseDirection(direction)
		if err != nil {
			return Filter{}, err
		}
		filter.Direction = &d
	}
	if category != "" {
		c, err := parseCategory(category)
		if err != nil {
			return Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "server":
		return log.LayerServer, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or server)", s)
	}
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, or error)", s)
	}
}

// formatEvent writes a human-readable representation of the event.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)
	dir := event.Direction.String()

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Message != nil:
		typeLabel = event.Message.KindName
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, dir, event.Layer, typeLabel)
	if event.User != "" {
		fmt.Fprintf(w, "  User: %s\n", event.User)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.CorrelationID != "" {
		fmt.Fprintf(w, "  CorrelationID: %s\n", msg.CorrelationID)
	}
	if msg.Scheme != "" || msg.ItemID != "" {
		fmt.Fprintf(w, "  Key: %s/%s\n", msg.Scheme, msg.ItemID)
	}
	if msg.ResultName != "" {
		fmt.Fprintf(w, "  Result: %s\n", msg.ResultName)
	}
	if msg.FieldCount > 0 {
		fmt.Fprintf(w, "  Fields: %d\n", msg.FieldCount)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
}

// RunView executes the view command.
func RunView(path string, filter Filter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if !filter.Match(event) {
			continue
		}
		formatEvent(output, event)
	}
	return nil
}
