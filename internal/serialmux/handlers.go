package serialmux

import (
	"context"

	"github.com/rs/zerolog"
)

// LineApplier applies a status line, as signals.Board does.
type LineApplier interface {
	ApplyLine(string) error
}

// HandleEvent routes a single line from the controller.
func HandleEvent(dst LineApplier, line string, log zerolog.Logger) {
	switch ClassifyLine(line) {
	case LineStatus:
		if err := dst.ApplyLine(line); err != nil {
			log.Warn().Err(err).Msg("bad status line")
		}
	case LineAck:
		log.Trace().Str("line", line).Msg("ack")
	case LineComment:
		log.Debug().Str("line", line).Msg("controller")
	default:
		log.Debug().Str("line", line).Msg("unknown line")
	}
}

// Dispatch subscribes to m and routes every line to dst until ctx is done or
// the subscription closes.
func Dispatch(ctx context.Context, m Interface, dst LineApplier, log zerolog.Logger) {
	id, lines := m.Subscribe()
	defer m.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			HandleEvent(dst, line, log)
		}
	}
}
