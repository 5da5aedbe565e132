package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/tickstream-protocol/tickstream-go/pkg/log"
)

// RunFilter reads a capture, keeps the events matching the filter, and
// writes them to a new capture file.
func RunFilter(path, output string, filter Filter) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer reader.Close()

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	encoder := log.NewEncoder(out)
	kept, total := 0, 0

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		total++
		if !filter.Match(event) {
			continue
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
		kept++
	}

	fmt.Printf("Wrote %d of %d events to %s\n", kept, total, output)
	return nil
}
