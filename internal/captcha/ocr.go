package captcha

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/JustJay7/ecourts-extractor/pkg/logger"
)

// Runner lets tests stub the tesseract binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Recognizer turns a preprocessed image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

type execRunner struct {
	logger *logger.Logger
}

// NewExecRunner runs commands with os/exec.
func NewExecRunner(log *logger.Logger) Runner {
	return execRunner{logger: log}
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		r.logger.Warn("OCR command failed",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 2<<10),
		)
	} else {
		r.logger.Debug("OCR command completed",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

// Tesseract recognizes single-line captchas with the tesseract CLI.
type Tesseract struct {
	path      string
	whitelist string
	runner    Runner
}

// NewTesseract creates a recognizer. An empty path uses "tesseract" from PATH.
func NewTesseract(path, whitelist string, runner Runner) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	return &Tesseract{path: path, whitelist: whitelist, runner: runner}
}

// Recognize writes the image to a temp file and runs
// "tesseract <file> stdout --psm 7 -c tessedit_char_whitelist=<chars>".
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	f, err := os.CreateTemp("", "captcha-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(image); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	args := []string{f.Name(), "stdout", "--psm", "7"}
	if t.whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+t.whitelist)
	}

	out, errb, err := t.runner.Run(ctx, t.path, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 256))
	}
	return string(out), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
