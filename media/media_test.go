package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tone(rate int, seconds float64) Clip {
	n := int(float64(rate) * seconds)
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(i % 200)
	}
	return Clip{SampleRate: rate, Samples: s}
}

func TestWAVRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	src := tone(16000, 1.5)
	if err := EncodeWAV(f, src); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.SampleRate != 16000 || len(got.Samples) != len(src.Samples) {
		t.Fatalf("unexpected clip rate=%d n=%d", got.SampleRate, len(got.Samples))
	}
	if got.Duration() != 1.5 {
		t.Fatalf("expected 1.5s, got %v", got.Duration())
	}
}

func TestSubClampsAndTracksOffset(t *testing.T) {
	c := tone(100, 10)
	sub := c.Sub(2, 4.5)
	if len(sub.Samples) != 250 || sub.Offset != 2 {
		t.Fatalf("unexpected sub clip n=%d offset=%v", len(sub.Samples), sub.Offset)
	}
	tail := c.Sub(9.5, 10.1)
	if len(tail.Samples) != 50 {
		t.Fatalf("expected tail clamped to 50 samples, got %d", len(tail.Samples))
	}
	empty := c.Sub(5, 5)
	if len(empty.Samples) != 0 {
		t.Fatalf("expected empty clip, got %d samples", len(empty.Samples))
	}
	nested := sub.Sub(3, 4)
	if len(nested.Samples) != 100 || nested.Offset != 3 {
		t.Fatalf("nested sub wrong: n=%d offset=%v", len(nested.Samples), nested.Offset)
	}
}

func TestAudioCloseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decoded.wav")
	b, err := WAVBytes(tone(8000, 0.2))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	a := &Audio{Path: path}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
}

func TestDecodeMissingSource(t *testing.T) {
	d := &Decoder{WorkDir: t.TempDir(), SampleRate: 16000}
	a, err := d.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.webm"))
	if err == nil || a != nil {
		t.Fatalf("expected decode error, got audio=%v err=%v", a, err)
	}
	entries, _ := os.ReadDir(d.WorkDir)
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, got %d", len(entries))
	}
}

func TestDecodeRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	if err := os.WriteFile(path, []byte("not a wav file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWAV(path); err == nil {
		t.Fatal("expected error for non-wav input")
	}
}
