// Package audio converts oral-argument recordings to MP3 and labels
// them with the case metadata the archive displays in players.
package audio

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lexforge/scrivener/tool"
)

// Transcoder wraps ffmpeg and ffprobe for conversion and inspection.
type Transcoder struct {
	run     tool.Runner
	ffmpeg  string
	ffprobe string
}

// TranscoderOption configures a Transcoder.
type TranscoderOption func(*Transcoder)

// WithBinaries overrides the engine binaries.
func WithBinaries(ffmpeg, ffprobe string) TranscoderOption {
	return func(t *Transcoder) {
		if ffmpeg != "" {
			t.ffmpeg = ffmpeg
		}
		if ffprobe != "" {
			t.ffprobe = ffprobe
		}
	}
}

// NewTranscoder creates a Transcoder on the given Runner.
func NewTranscoder(run tool.Runner, opts ...TranscoderOption) *Transcoder {
	t := &Transcoder{run: run, ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, o := range opts {
		o(t)
	}
	return t
}

// ToMP3 converts the recording at inPath to a 22.05 kHz 48 kbps mono-ish
// MP3 at outPath. Arguments follow what courtroom recordings tolerate:
// low bitrate speech, no video streams.
func (t *Transcoder) ToMP3(ctx context.Context, inPath, outPath string) error {
	argv := []string{t.ffmpeg, "-y", "-i", inPath, "-vn", "-ar", "22050", "-ab", "48k", outPath}
	_, stderr, code, err := t.run.Run(ctx, argv, nil)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%s exited %d: %s", t.ffmpeg, code, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// Duration returns the length of the recording in seconds. ffprobe's
// own diagnostics are surfaced verbatim: callers forward them to the
// operator who uploaded the unreadable file.
func (t *Transcoder) Duration(ctx context.Context, path string) (float64, error) {
	argv := []string{t.ffprobe, "-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path}
	stdout, stderr, code, err := t.run.Run(ctx, argv, nil)
	if err != nil {
		return 0, err
	}
	if code != 0 {
		return 0, fmt.Errorf("%s", strings.TrimSpace(string(stderr)))
	}
	s := strings.TrimSpace(string(stdout))
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable duration %q: %w", s, err)
	}
	return seconds, nil
}
