// Package replay records player input and re-runs it against the
// simulation. Given the same seed base, attempt and frame times, a trace
// reproduces the attempt exactly, which is what audits rely on.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/dash-rally/internal/core"
)

// Frame is the input applied before one simulated frame.
type Frame struct {
	DtMs  float64 `yaml:"dt"`
	Jump  bool    `yaml:"jump,omitempty"`
	Slide bool    `yaml:"slide,omitempty"`
}

// Input converts the frame to a simulation input.
func (f Frame) Input() core.InputFrame {
	in := core.NewInputFrame()
	if f.Jump {
		in.Set(core.ActionJump)
	}
	if f.Slide {
		in.Set(core.ActionSlide)
	}
	return in
}

// Trace is a recorded attempt.
type Trace struct {
	ID         string    `yaml:"id"`
	SeedBase   string    `yaml:"seed_base"`
	Attempt    int       `yaml:"attempt"`
	ViewW      float64   `yaml:"view_w,omitempty"`
	ViewH      float64   `yaml:"view_h,omitempty"`
	RecordedAt time.Time `yaml:"recorded_at"`
	Frames     []Frame   `yaml:"frames"`
}

// ErrEmptyTrace is returned when a trace has no frames to replay.
var ErrEmptyTrace = errors.New("replay: trace has no frames")

// Validate checks that the trace can be replayed.
func (t Trace) Validate() error {
	if t.Attempt < 1 {
		return fmt.Errorf("replay: invalid attempt %d", t.Attempt)
	}
	if len(t.Frames) == 0 {
		return ErrEmptyTrace
	}
	for i, f := range t.Frames {
		if f.DtMs < 0 {
			return fmt.Errorf("replay: frame %d has negative dt", i)
		}
	}
	return nil
}

// Recorder accumulates frames during play.
type Recorder struct {
	trace Trace
}

// NewRecorder starts a trace for one attempt.
func NewRecorder(seedBase string, attempt int, viewW, viewH float64) *Recorder {
	return &Recorder{trace: Trace{
		ID:         uuid.NewString(),
		SeedBase:   seedBase,
		Attempt:    attempt,
		ViewW:      viewW,
		ViewH:      viewH,
		RecordedAt: time.Now().UTC(),
	}}
}

// Record appends the input applied before a frame of dtMs.
func (r *Recorder) Record(in core.InputFrame, dtMs float64) {
	r.trace.Frames = append(r.trace.Frames, Frame{
		DtMs:  dtMs,
		Jump:  in.Has(core.ActionJump),
		Slide: in.Has(core.ActionSlide),
	})
}

// Len returns the number of recorded frames.
func (r *Recorder) Len() int { return len(r.trace.Frames) }

// Trace returns a copy of the recorded trace.
func (r *Recorder) Trace() Trace {
	t := r.trace
	t.Frames = append([]Frame(nil), r.trace.Frames...)
	return t
}

// Encode writes t as YAML.
func Encode(w io.Writer, t Trace) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("replay: cannot encode trace: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML trace from r.
func Decode(r io.Reader) (Trace, error) {
	var t Trace
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return Trace{}, fmt.Errorf("replay: cannot decode trace: %w", err)
	}
	return t, nil
}

// Save writes t to path, creating parent directories.
func Save(path string, t Trace) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("replay: cannot create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("replay: cannot create %s: %w", path, err)
	}
	if err := Encode(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a trace from path.
func Load(path string) (Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return Trace{}, fmt.Errorf("replay: cannot open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// FileName is the conventional file name for a trace.
func FileName(t Trace) string {
	return fmt.Sprintf("attempt-%d-%s.yaml", t.Attempt, t.ID)
}
