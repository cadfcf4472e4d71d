package frame

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/banshee-data/autopilot/internal/timeutil"
)

// DirSource replays frames from image files dropped into a directory. Every
// PNG or JPEG created or rewritten in Dir becomes one frame. It backs --dev
// mode, where a recorder or a simulator bridge writes camera images to disk.
type DirSource struct {
	Dir   string
	Clock timeutil.Clock
	Log   zerolog.Logger
}

// Subscribe starts watching Dir. Files that fail to decode are logged and
// skipped.
func (s *DirSource) Subscribe() (Subscription, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("frame watcher: %w", err)
	}
	if err := w.Add(s.Dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", s.Dir, err)
	}
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	sub := &dirSubscription{
		box:     NewMailbox(),
		watcher: w,
		done:    make(chan struct{}),
	}
	sub.wg.Add(1)
	go sub.loop(clock, s.Log)
	return sub, nil
}

type dirSubscription struct {
	box     *Mailbox
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func (d *dirSubscription) Frames() <-chan Frame { return d.box.Frames() }

func (d *dirSubscription) Close() error {
	var err error
	d.once.Do(func() {
		close(d.done)
		err = d.watcher.Close()
		d.wg.Wait()
		d.box.Close()
	})
	return err
}

func (d *dirSubscription) loop(clock timeutil.Clock, log zerolog.Logger) {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isImageFile(event.Name) {
				continue
			}
			payload, err := os.ReadFile(event.Name)
			if err != nil {
				log.Warn().Err(err).Str("file", event.Name).Msg("frame file unreadable, skipped")
				continue
			}
			img, err := Decode(payload)
			if err != nil {
				// A half-written file shows up here; the completing write
				// event delivers it again.
				log.Debug().Err(err).Str("file", event.Name).Msg("frame skipped")
				continue
			}
			d.box.Offer(Frame{Stamp: clock.Now(), Image: img})
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("frame watcher error")
		}
	}
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
