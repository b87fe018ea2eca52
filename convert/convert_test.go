package convert

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			"plain",
			Request{Input: "/in/a.dds", OutputDir: "/out", Format: "BC7_UNORM"},
			[]string{"-f", "BC7_UNORM", "-o", "/out", "-y", "/in/a.dds"},
		},
		{
			"resized",
			Request{Input: "/in/a.dds", OutputDir: "/out", Format: "BC1_UNORM", MaxDim: 1024},
			[]string{"-f", "BC1_UNORM", "-o", "/out", "-y", "-w", "1024", "-h", "1024", "/in/a.dds"},
		},
		{
			"single mip",
			Request{Input: "/in/a.dds", OutputDir: "/out", Format: "BC4_UNORM", SingleMip: true},
			[]string{"-f", "BC4_UNORM", "-o", "/out", "-y", "-m", "1", "/in/a.dds"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Args(tt.req))
		})
	}
}

func TestToolExitCodes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/sh test doubles")
	}

	t.Run("success", func(t *testing.T) {
		tool := NewTool("true")
		assert.NoError(t, tool.Convert(context.Background(), Request{Input: "a.dds"}))
	})

	t.Run("nonzero exit", func(t *testing.T) {
		tool := NewTool("false")
		err := tool.Convert(context.Background(), Request{Input: "a.dds"})
		assert.ErrorIs(t, err, ErrExit)
	})

	t.Run("missing binary", func(t *testing.T) {
		tool := NewTool("/nonexistent/converter-binary")
		err := tool.Convert(context.Background(), Request{Input: "a.dds"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrExit)
	})

	t.Run("timeout", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), "slow.sh")
		require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		tool := NewTool(script)
		err := tool.Convert(ctx, Request{Input: "a.dds"})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
