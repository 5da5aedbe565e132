package log

import (
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader reads protocol events back from a capture file written by
// FileLogger.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
}

// NewReader opens a capture file for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: cbor.NewDecoder(f),
	}, nil
}

// Next returns the next event, or io.EOF at the end of the capture.
func (r *Reader) Next() (Event, error) {
	var event Event
	err := r.decoder.Decode(&event)
	return event, err
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
