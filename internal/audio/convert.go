package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Conversion target: the renderer consumes mono 16-bit PCM
const (
	sampleRate = 44100
	channels   = 1
)

var codecLabels = map[int]string{
	8:  "pcm_u8",
	16: "pcm_s16le",
	24: "pcm_s24le",
	32: "pcm_s32le",
}

// WAVPath returns the path the converted copy of src lives at.
func WAVPath(src string) string {
	if idx := strings.LastIndex(src, "."); idx >= 0 {
		return src[:idx] + ".wav"
	}
	return src + ".wav"
}

// EnsureWAV converts src to PCM WAV via ffmpeg unless src already is
// one or a converted copy is cached beside it. Returns the WAV path.
func EnsureWAV(ctx context.Context, src string) (string, error) {
	if strings.HasSuffix(strings.ToLower(src), ".wav") {
		return src, nil
	}
	dest := WAVPath(src)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := convert(ctx, src, dest, 16); err != nil {
		return "", err
	}
	return dest, nil
}

func convert(ctx context.Context, src, dest string, bits int) error {
	codec, ok := codecLabels[bits]
	if !ok {
		return fmt.Errorf("unsupported bit depth %d", bits)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", src,
		"-ac", strconv.Itoa(channels),
		"-acodec", codec,
		"-ar", strconv.Itoa(sampleRate),
		"-loglevel", "error",
		dest,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg convert %s: %w: %s", src, err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(dest); err != nil {
		return fmt.Errorf("ffmpeg convert %s: no output produced", src)
	}
	return nil
}
