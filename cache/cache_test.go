package cache

import (
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	c := NewMemory()
	fp := digest.FromString("content")

	_, ok, err := c.Get(fp, "BC7:2048")
	require.NoError(t, err)
	assert.False(t, ok)

	res := Result{Status: Success, Fingerprint: fp, RecipeID: "BC7:2048", Output: "textures/a.dds"}
	require.NoError(t, c.Put(res))

	got, ok, err := c.Get(fp, "BC7:2048")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res, got)

	// Different recipe is a different key.
	_, ok, err = c.Get(fp, "BC5:1024")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryConcurrent(t *testing.T) {
	c := NewMemory()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fp := digest.FromString(string(rune('a' + n)))
			_ = c.Put(Result{Status: Success, Fingerprint: fp, RecipeID: "r"})
			_, _, _ = c.Get(fp, "r")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, c.Len())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "unknown", Status(9).String())
}
