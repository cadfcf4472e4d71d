package motion

import "fmt"

// LineWriter writes a newline-terminated command to a device, as the serial
// mux does.
type LineWriter interface {
	SendCommand(string) error
}

// SerialSink encodes commands for the motor controller's line protocol:
//
//	V <linear> <angular>
type SerialSink struct {
	w LineWriter
}

// NewSerialSink returns a sink writing to w.
func NewSerialSink(w LineWriter) *SerialSink {
	return &SerialSink{w: w}
}

// Send writes t as a velocity line.
func (s *SerialSink) Send(t Twist) error {
	return s.w.SendCommand(FormatSerial(t))
}

// FormatSerial renders t in the motor controller's line protocol.
func FormatSerial(t Twist) string {
	return fmt.Sprintf("V %.3f %.3f", t.Linear, t.Angular)
}
