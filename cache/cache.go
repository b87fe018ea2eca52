// Package cache defines the completion cache for conversion results.
//
// The cache maps (content fingerprint, recipe id) to the outcome of a
// prior conversion, letting reruns skip work whose inputs are unchanged.
// It is always injected explicitly; there is no package-level instance.
// Implementations serialize writes; reads may be concurrent.
package cache

import (
	"sync"

	"github.com/opencontainers/go-digest"
)

// Status is the outcome of a conversion job.
type Status uint8

// Job outcomes.
const (
	Success Status = iota
	Failed
	Skipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result is one recorded job outcome.
type Result struct {
	// Status is the job's final outcome.
	Status Status `json:"status"`

	// Fingerprint identifies the input content the job consumed.
	Fingerprint digest.Digest `json:"fingerprint"`

	// RecipeID identifies the conversion recipe applied.
	RecipeID string `json:"recipe_id"`

	// Output is the logical path of the converted file.
	Output string `json:"output,omitempty"`

	// Detail carries the failure reason for failed jobs.
	Detail string `json:"detail,omitempty"`
}

// Cache stores and retrieves job results.
//
// Get errors are advisory: callers treat them as a miss and redo the work.
type Cache interface {
	Get(fp digest.Digest, recipeID string) (Result, bool, error)
	Put(res Result) error
}

// Key builds the storage key for a fingerprint/recipe pair.
func Key(fp digest.Digest, recipeID string) string {
	return fp.String() + "|" + recipeID
}

// Memory is an in-process Cache for tests and single runs.
type Memory struct {
	mu sync.RWMutex
	m  map[string]Result
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]Result)}
}

// Get returns the recorded result for the pair, if any.
func (c *Memory) Get(fp digest.Digest, recipeID string) (Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.m[Key(fp, recipeID)]
	return res, ok, nil
}

// Put records a result, overwriting any previous outcome for the pair.
func (c *Memory) Put(res Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[Key(res.Fingerprint, res.RecipeID)] = res
	return nil
}

// Len returns the number of recorded results.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
