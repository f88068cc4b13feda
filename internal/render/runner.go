package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// maxLoggedStderr caps the converter output copied into a failure log.
const maxLoggedStderr = 8 << 10

// Runner runs one converter invocation (pdftoppm, magick, heif-convert, sips).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

// Run kills the converter when ctx ends and reports ctx's error in place of
// the bare exit status.
func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	tool := filepath.Base(name)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%s interrupted: %w", tool, ctx.Err())
	}
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		r.logger.Warn("render.exec.failed",
			"tool", tool,
			"args", strings.Join(args, " "),
			"elapsed_ms", elapsed,
			"error", err,
			"stderr", truncate(stderr.String(), maxLoggedStderr),
		)
		return stdout.Bytes(), stderr.Bytes(), err
	}
	r.logger.Debug("render.exec.ok", "tool", tool, "elapsed_ms", elapsed, "stderr_bytes", stderr.Len())
	return stdout.Bytes(), stderr.Bytes(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
