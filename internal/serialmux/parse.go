package serialmux

import "strings"

// Line kinds reported by the motor controller.
const (
	LineStatus  = "status"
	LineAck     = "ack"
	LineComment = "comment"
	LineUnknown = "unknown"
)

// InitCommands are sent by Initialize: zero the motors, then ask the
// controller to report signal changes as key=value lines.
var InitCommands = []string{
	"V 0.000 0.000",
	"REPORT ON",
}

// ClassifyLine returns the kind of a line read from the controller.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineUnknown
	case strings.HasPrefix(line, "#"):
		return LineComment
	case line == "OK" || strings.HasPrefix(line, "OK "):
		return LineAck
	case strings.Contains(line, "="):
		return LineStatus
	}
	return LineUnknown
}
