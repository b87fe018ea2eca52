// Package convert invokes the external texture conversion tool.
//
// The tool is an opaque process: exit code 0 means success, anything else
// is a failure. No structured output is consumed beyond a stderr tail
// attached to errors for diagnostics.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// ErrExit is returned when the tool exits non-zero.
var ErrExit = errors.New("convert: tool failed")

// Request describes one conversion invocation.
type Request struct {
	// Input is the absolute path of the source texture.
	Input string

	// OutputDir is the absolute directory the tool writes into.
	OutputDir string

	// Format is the target compressed format, e.g. "BC7_UNORM".
	Format string

	// MaxDim caps the output's larger dimension; zero means no resize.
	MaxDim int

	// SingleMip drops the mip chain down to one level.
	SingleMip bool
}

// Converter runs one conversion per call. Implementations must be safe
// for concurrent use; the scheduler invokes them from multiple workers.
type Converter interface {
	Convert(ctx context.Context, req Request) error
}

// stderrTailLen bounds how much captured stderr is attached to errors.
const stderrTailLen = 512

// Tool is a Converter backed by an external binary.
type Tool struct {
	path   string
	logger *slog.Logger
}

// ToolOption configures a Tool.
type ToolOption func(*Tool)

// WithLogger sets the logger for invocation diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) ToolOption {
	return func(t *Tool) {
		t.logger = logger
	}
}

// NewTool creates a Converter invoking the binary at path.
func NewTool(path string, opts ...ToolOption) *Tool {
	t := &Tool{path: path}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

// Args builds the command line for a request.
func Args(req Request) []string {
	args := []string{"-f", req.Format, "-o", req.OutputDir, "-y"}
	if req.MaxDim > 0 {
		dim := strconv.Itoa(req.MaxDim)
		args = append(args, "-w", dim, "-h", dim)
	}
	if req.SingleMip {
		args = append(args, "-m", "1")
	}
	return append(args, req.Input)
}

// Convert runs the tool once. The context bounds the invocation; a
// deadline or cancellation kills the process.
func (t *Tool) Convert(ctx context.Context, req Request) error {
	args := Args(req)
	cmd := exec.CommandContext(ctx, t.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.log().Debug("converter invocation", "input", req.Input, "format", req.Format)
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("convert: %s: %w", req.Input, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s: exit %d: %s", ErrExit, req.Input, exitErr.ExitCode(), stderrTail(&stderr))
	}
	return fmt.Errorf("convert: %s: %w", req.Input, err)
}

func stderrTail(buf *bytes.Buffer) string {
	s := strings.TrimSpace(buf.String())
	if len(s) > stderrTailLen {
		s = "..." + s[len(s)-stderrTailLen:]
	}
	if s == "" {
		return "(no stderr)"
	}
	return s
}
