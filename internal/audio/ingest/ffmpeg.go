package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// runCmd executes bin and returns its combined output.
func runCmd(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// ffmpegToWAV converts any container ffmpeg understands into 16-bit PCM WAV
// at the target rate, mono.
func ffmpegToWAV(ctx context.Context, bin, src, dst string, rate int) error {
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", src,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(rate),
		"-c:a", "pcm_s16le", "-f", "wav", dst,
	}
	out, err := runCmd(ctx, bin, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg: %v: %s", err, lastLine(out))
	}
	return nil
}

func lastLine(out string) string {
	out = strings.TrimSpace(out)
	if i := strings.LastIndexByte(out, '\n'); i >= 0 {
		return out[i+1:]
	}
	return out
}
