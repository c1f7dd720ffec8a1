// Package blendshape reads CSV blendshape animation exports: a header row
// of column names, a timestamp in column 0, and per-shape values from
// column 2 onward. The server treats it as a plain data source for action
// playback; no state machine lives here.
package blendshape

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

var ErrTooFewColumns = errors.New("blendshape csv needs at least 3 columns")

// Frame maps blendshape name to its value for one animation frame.
type Frame map[string]float64

// Stats summarizes one blendshape track across the whole animation.
type Stats struct {
	Min     float64
	Max     float64
	Average float64
	Count   int
}

// Animation is a fully loaded blendshape clip.
type Animation struct {
	names      []string
	timestamps []string
	frames     []Frame
}

// Load reads the whole CSV file into memory.
func Load(path string) (*Animation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blendshape csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // rows may be ragged; short cells are skipped

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read blendshape header: %w", err)
	}
	if len(header) < 3 {
		return nil, ErrTooFewColumns
	}

	anim := &Animation{names: header}
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		if len(row) < 3 {
			continue
		}

		frame := make(Frame, len(header)-2)
		for i := 2; i < len(row) && i < len(header); i++ {
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				continue
			}
			frame[header[i]] = v
		}
		anim.frames = append(anim.frames, frame)
		anim.timestamps = append(anim.timestamps, row[0])
	}

	log.Info().Str("module", "blendshape").Str("path", path).
		Int("frames", len(anim.frames)).Int("columns", len(header)).Msg("animation loaded")
	return anim, nil
}

func (a *Animation) FrameCount() int      { return len(a.frames) }
func (a *Animation) Timestamps() []string { return a.timestamps }

// Names lists the blendshape tracks present in the first frame.
func (a *Animation) Names() []string {
	if len(a.frames) == 0 {
		return nil
	}
	out := make([]string, 0, len(a.frames[0]))
	for name := range a.frames[0] {
		out = append(out, name)
	}
	return out
}

// FrameAt returns all values for one frame.
func (a *Animation) FrameAt(i int) (Frame, bool) {
	if i < 0 || i >= len(a.frames) {
		return nil, false
	}
	return a.frames[i], true
}

// Value looks up one blendshape in one frame.
func (a *Animation) Value(i int, name string) (float64, bool) {
	frame, ok := a.FrameAt(i)
	if !ok {
		return 0, false
	}
	v, ok := frame[name]
	return v, ok
}

// Range computes min/max/average for one track. Zero Stats when the track
// never appears.
func (a *Animation) Range(name string) Stats {
	var s Stats
	var sum float64
	for _, frame := range a.frames {
		v, ok := frame[name]
		if !ok {
			continue
		}
		if s.Count == 0 || v < s.Min {
			s.Min = v
		}
		if s.Count == 0 || v > s.Max {
			s.Max = v
		}
		sum += v
		s.Count++
	}
	if s.Count > 0 {
		s.Average = sum / float64(s.Count)
	}
	return s
}
