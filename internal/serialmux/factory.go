package serialmux

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// OpenSerial opens a real serial port.
func OpenSerial(path string, opts PortOptions) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// Open opens path with open and wraps it in a Mux.
func Open(open Opener, path string, opts PortOptions, log zerolog.Logger) (*Mux[Port], error) {
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	return New[Port](port, log), nil
}
