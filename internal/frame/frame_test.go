package frame

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeConvertsToGray(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	src.Set(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	img, err := Decode(encodePNG(t, src))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := img.Bounds().Dx(); got != 4 {
		t.Errorf("width = %d, want 4", got)
	}
	if got := img.GrayAt(1, 1).Y; got != 255 {
		t.Errorf("GrayAt(1,1) = %d, want 255", got)
	}
	if got := img.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("GrayAt(0,0) = %d, want 0", got)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("Decode(nil) error = %v, want ErrEmptyPayload", err)
	}
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("Decode(garbage) returned nil error")
	}
}

func TestMailboxLatestWins(t *testing.T) {
	box := NewMailbox()
	img := image.NewGray(image.Rect(0, 0, 1, 1))

	box.Offer(Frame{Image: img})
	box.Offer(Frame{Image: img})
	box.Offer(Frame{Image: img})

	f := <-box.Frames()
	if f.Seq != 3 {
		t.Errorf("received Seq = %d, want 3 (only the newest frame)", f.Seq)
	}
	select {
	case extra := <-box.Frames():
		t.Errorf("unexpected buffered frame %d", extra.Seq)
	default:
	}
}

func TestMailboxCloseIsIdempotent(t *testing.T) {
	box := NewMailbox()
	box.Close()
	box.Close()

	if box.Offer(Frame{}) {
		t.Error("Offer after Close reported delivery")
	}
	if _, ok := <-box.Frames(); ok {
		t.Error("Frames channel still open after Close")
	}
}

func TestDirSourceDeliversNewFiles(t *testing.T) {
	dir := t.TempDir()
	src := &DirSource{Dir: dir, Log: zerolog.Nop()}

	sub, err := src.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	img := image.NewGray(image.Rect(0, 0, 8, 6))
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "0001.png"), encodePNG(t, img), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-sub.Frames():
		if f.Width() != 8 || f.Height() != 6 {
			t.Errorf("frame size = %dx%d, want 8x6", f.Width(), f.Height())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no frame delivered for new png file")
	}

	if err := sub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestDirSourceMissingDirectory(t *testing.T) {
	src := &DirSource{Dir: filepath.Join(t.TempDir(), "missing")}
	if _, err := src.Subscribe(); err == nil {
		t.Error("Subscribe() on a missing directory returned nil error")
	}
}
