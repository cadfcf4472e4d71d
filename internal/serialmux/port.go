package serialmux

import (
	"io"
)

// Port is the minimal interface needed for a serial port. It lets the mux
// run against pipes and buffers in tests.
type Port interface {
	io.ReadWriter
	io.Closer
}

// Opener opens the port at path.
type Opener func(path string, opts PortOptions) (Port, error)
