package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ArtifactPrefix starts every exported file name.
const ArtifactPrefix = "mozzaic_export_"

// ArtifactName returns the deterministic export name for a capture
// finalized at t: the prefix, Unix milliseconds, and ext.
func ArtifactName(t time.Time, ext string) string {
	return fmt.Sprintf("%s%d.%s", ArtifactPrefix, t.UnixMilli(), ext)
}

// Artifact is a finished capture.
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte

	// Duration is the requested capture length.
	Duration time.Duration
	// Frames is the number of non-empty chunks in Data.
	Frames int

	Width, Height int
	Session       uuid.UUID
}

// Sink receives finished artifacts, standing in for a download.
type Sink interface {
	Deliver(a Artifact) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Artifact) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(a Artifact) error { return f(a) }

// DirSink writes artifacts into Dir under their Name. Files are written to
// a temporary name first and renamed, so a partially written artifact is
// never visible.
type DirSink struct {
	Dir string
}

// Deliver implements Sink.
func (s DirSink) Deliver(a Artifact) error {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if a.Name == "" || filepath.Base(a.Name) != a.Name {
		return fmt.Errorf("capture: invalid artifact name %q", a.Name)
	}
	tmp, err := os.CreateTemp(dir, ".capture-*")
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: write %s: %w", a.Name, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: write %s: %w", a.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: write %s: %w", a.Name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, a.Name)); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}

// Path returns where Deliver writes a.
func (s DirSink) Path(a Artifact) string {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, a.Name)
}
