package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texforge/texforge/cache"
	"github.com/texforge/texforge/convert"
	"github.com/texforge/texforge/texture"
	"github.com/texforge/texforge/vfs"
)

// stubConverter records invocations and fails on demand.
type stubConverter struct {
	mu       sync.Mutex
	calls    []convert.Request
	failures map[string]int // input base name -> remaining failures
	onCall   func(n int)
}

func (c *stubConverter) convert(req convert.Request) error {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	n := len(c.calls)
	onCall := c.onCall
	var fail bool
	for name, left := range c.failures {
		if left > 0 && matchBase(req.Input, name) {
			c.failures[name] = left - 1
			fail = true
		}
	}
	c.mu.Unlock()
	if onCall != nil {
		onCall(n)
	}
	if fail {
		return fmt.Errorf("%w: exit 1", convert.ErrExit)
	}
	return nil
}

func (c *stubConverter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func matchBase(input, base string) bool {
	return len(input) >= len(base) && input[len(input)-len(base):] == base
}

func looseAsset(path string, typ texture.Type) texture.Asset {
	return texture.Asset{
		Path: path,
		Type: typ,
		Entry: vfs.Entry{
			Path:        path,
			Kind:        vfs.SourceLoose,
			LoosePath:   "/nonexistent/" + path,
			Fingerprint: digest.FromString("fp:" + path),
		},
	}
}

func assets(n int) []texture.Asset {
	out := make([]texture.Asset, 0, n)
	for i := range n {
		out = append(out, looseAsset(fmt.Sprintf("textures/a%02d.dds", i), texture.Diffuse))
	}
	return out
}

func TestRunConvertsAll(t *testing.T) {
	conv := &stubConverter{}
	cc := cache.NewMemory()
	s := New(converterFunc(conv.convert), cc, WithWorkers(4))

	sum, err := s.Run(context.Background(), assets(5), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 5, sum.Converted)
	assert.Zero(t, sum.Skipped)
	assert.Zero(t, sum.Failed)
	assert.True(t, sum.FullSuccess())
	assert.Equal(t, 5, conv.count())
	assert.Equal(t, 5, cc.Len())
}

// converterFunc adapts a function to convert.Converter.
type converterFunc func(convert.Request) error

func (f converterFunc) Convert(_ context.Context, req convert.Request) error {
	return f(req)
}

func TestIdempotence(t *testing.T) {
	conv := &stubConverter{}
	cc := cache.NewMemory()
	in := assets(4)
	out := t.TempDir()

	s := New(converterFunc(conv.convert), cc, WithWorkers(2))
	first, err := s.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Converted)
	require.Equal(t, 4, conv.count())

	// Unchanged inputs with a populated cache issue zero invocations.
	second, err := s.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 4, second.Skipped)
	assert.Zero(t, second.Converted)
	assert.True(t, second.FullSuccess())
	assert.Equal(t, 4, conv.count())
}

func TestChangedFingerprintReconverts(t *testing.T) {
	conv := &stubConverter{}
	cc := cache.NewMemory()
	in := assets(1)
	out := t.TempDir()

	s := New(converterFunc(conv.convert), cc)
	_, err := s.Run(context.Background(), in, out)
	require.NoError(t, err)

	in[0].Entry.Fingerprint = digest.FromString("fp:changed")
	sum, err := s.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Converted)
	assert.Equal(t, 2, conv.count())
}

func TestRetryThenSuccess(t *testing.T) {
	conv := &stubConverter{failures: map[string]int{"a00.dds": 2}}
	cc := cache.NewMemory()

	s := New(converterFunc(conv.convert), cc, WithRetries(2), WithWorkers(1))
	sum, err := s.Run(context.Background(), assets(1), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Converted)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, 3, conv.count())
}

func TestRetriesExhausted(t *testing.T) {
	conv := &stubConverter{failures: map[string]int{"a00.dds": 2}}
	cc := cache.NewMemory()

	s := New(converterFunc(conv.convert), cc, WithRetries(1), WithWorkers(1))
	sum, err := s.Run(context.Background(), assets(1), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Zero(t, sum.Converted)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, "textures/a00.dds", sum.Errors[0].Path)
	assert.False(t, sum.FullSuccess())
	assert.Equal(t, 2, conv.count())

	// A failed record is not a skip: the next run tries again.
	sum, err = s.Run(context.Background(), assets(1), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Converted)
}

func TestFailureIsolation(t *testing.T) {
	conv := &stubConverter{failures: map[string]int{"a01.dds": 10}}
	cc := cache.NewMemory()

	s := New(converterFunc(conv.convert), cc, WithWorkers(2))
	sum, err := s.Run(context.Background(), assets(4), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Converted)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0].Detail, "exit 1")
}

func TestWorkerCountInvariance(t *testing.T) {
	in := assets(20)
	in = append(in, looseAsset("textures/n_n.dds", texture.Normal))
	in = append(in, looseAsset("textures/g_g.dds", texture.Emissive))

	run := func(workers int) Summary {
		conv := &stubConverter{failures: map[string]int{"a03.dds": 10, "a11.dds": 10}}
		s := New(converterFunc(conv.convert), cache.NewMemory(), WithWorkers(workers))
		sum, err := s.Run(context.Background(), in, t.TempDir())
		require.NoError(t, err)
		return sum
	}

	one := run(1)
	eight := run(8)
	assert.Equal(t, one.Total, eight.Total)
	assert.Equal(t, one.Converted, eight.Converted)
	assert.Equal(t, one.Failed, eight.Failed)

	failedPaths := func(sum Summary) map[string]bool {
		m := make(map[string]bool)
		for _, e := range sum.Errors {
			m[e.Path] = true
		}
		return m
	}
	assert.Equal(t, failedPaths(one), failedPaths(eight))
}

func TestCancellationPartialSummary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	conv := &stubConverter{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	cc := cache.NewMemory()

	s := New(converterFunc(conv.convert), cc, WithWorkers(1))
	sum, err := s.Run(ctx, assets(6), t.TempDir())
	require.NoError(t, err)
	assert.True(t, sum.Cancelled)
	assert.Equal(t, 2, sum.Converted)
	assert.Zero(t, sum.Failed)
	assert.False(t, sum.FullSuccess())
}

// failingCache errors on every operation.
type failingCache struct{}

func (failingCache) Get(digest.Digest, string) (cache.Result, bool, error) {
	return cache.Result{}, false, errors.New("cache offline")
}
func (failingCache) Put(cache.Result) error { return errors.New("cache offline") }

func TestCacheErrorsDegradeToMiss(t *testing.T) {
	conv := &stubConverter{}
	s := New(converterFunc(conv.convert), failingCache{}, WithWorkers(2))

	sum, err := s.Run(context.Background(), assets(3), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Converted)
	assert.Zero(t, sum.Failed)
	assert.True(t, sum.FullSuccess())
}

func TestResultRecordedBeforeObserver(t *testing.T) {
	cc := cache.NewMemory()
	conv := &stubConverter{}

	var mu sync.Mutex
	var events []Progress
	s := New(converterFunc(conv.convert), cc,
		WithWorkers(3),
		WithProgress(func(p Progress) {
			// The cache must already hold the job's result.
			fp := digest.FromString("fp:" + p.Path)
			recipe, _ := ResolveRecipe(PresetQuality, texture.Diffuse)
			_, ok, err := cc.Get(fp, recipe.ID())
			assert.NoError(t, err)
			assert.True(t, ok, "result for %s not recorded before observer", p.Path)

			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		}))

	sum, err := s.Run(context.Background(), assets(6), t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 6, sum.Converted)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 6)
	seen := make(map[int]bool)
	for _, e := range events {
		assert.Equal(t, 6, e.Total)
		seen[e.Done] = true
	}
	// Done values cover 1..N exactly once across workers.
	for i := 1; i <= 6; i++ {
		assert.True(t, seen[i], "missing done count %d", i)
	}
}

func TestBuildJobs(t *testing.T) {
	s := New(converterFunc(func(convert.Request) error { return nil }), cache.NewMemory(),
		WithPreset(PresetQuality))

	jobs := s.BuildJobs([]texture.Asset{
		looseAsset("textures/armor/steel.dds", texture.Diffuse),
		looseAsset("textures/armor/steel_n.dds", texture.Normal),
	}, "/out")
	require.Len(t, jobs, 2)
	assert.Equal(t, "BC7_UNORM", jobs[0].Recipe.Format)
	assert.Equal(t, "BC5_UNORM", jobs[1].Recipe.Format)
	assert.Contains(t, jobs[0].OutputDir, "armor")
}

func TestGroupByRecipe(t *testing.T) {
	s := New(converterFunc(func(convert.Request) error { return nil }), cache.NewMemory())
	jobs := s.BuildJobs([]texture.Asset{
		looseAsset("textures/a.dds", texture.Diffuse),
		looseAsset("textures/b_n.dds", texture.Normal),
		looseAsset("textures/c.dds", texture.Diffuse),
	}, "/out")
	batches := groupByRecipe(jobs)
	require.Len(t, batches, 2)
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	assert.Equal(t, 3, total)
}
