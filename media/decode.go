// Package media converts uploaded recordings into the mono PCM16 audio the
// analyzers consume and manages the lifetime of the decoded file.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Decoder shells out to ffmpeg.
type Decoder struct {
	FFmpegBin  string
	WorkDir    string
	SampleRate int
}

// Audio is a decoded recording backed by a temporary WAV file.
type Audio struct {
	Path string
	Clip
}

// Close deletes the temporary WAV file.
func (a *Audio) Close() error {
	if a == nil || a.Path == "" {
		return nil
	}
	err := os.Remove(a.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Decode converts src into a temporary mono WAV under WorkDir. The caller
// owns the returned Audio and must Close it.
func (d *Decoder) Decode(ctx context.Context, src string) (*Audio, error) {
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("recording %s: %w", src, err)
	}
	ffmpeg := d.FFmpegBin
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpeg); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found: %w", err)
	}
	if err := os.MkdirAll(d.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	tmp, err := os.CreateTemp(d.WorkDir, "decoded-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating temp wav: %w", err)
	}
	path := tmp.Name()
	_ = tmp.Close()

	args := []string{
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(d.SampleRate),
		"-ac", "1",
		path,
	}
	if out, err := runCommand(ctx, ffmpeg, args...); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("running ffmpeg: %w: %s", err, lastLine(out))
	}

	clip, err := ReadWAV(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("reading decoded wav: %w", err)
	}
	return &Audio{Path: path, Clip: clip}, nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var output strings.Builder
	cmd.Stdout = &output
	cmd.Stderr = &output
	err := cmd.Run()
	return output.String(), err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
