package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detra/semsearch/internal/models"
)

func response(summary string) models.SearchResponse {
	return models.SearchResponse{Summary: summary}
}

func TestCache_HitAndMiss(t *testing.T) {
	c := New(time.Minute, 16)

	c.Put("gaming monitor", 5, response("monitors"))

	got, ok := c.Get("gaming monitor", 5)
	require.True(t, ok)
	assert.Equal(t, "monitors", got.Summary)

	_, ok = c.Get("gaming monitors", 5)
	assert.False(t, ok, "a one-character difference is a different key")

	_, ok = c.Get("gaming monitor", 6)
	assert.False(t, ok, "max_results is part of the key")
}

func TestCache_KeyNormalization(t *testing.T) {
	c := New(time.Minute, 16)

	c.Put("  Gaming Monitor ", 5, response("monitors"))

	_, ok := c.Get("gaming monitor", 5)
	assert.True(t, ok, "keys are trimmed and lowercased")
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Minute, 16)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Put("chair", 5, response("chairs"))

	clock = clock.Add(59 * time.Second)
	_, ok := c.Get("chair", 5)
	assert.True(t, ok)

	clock = clock.Add(2 * time.Second)
	_, ok = c.Get("chair", 5)
	assert.False(t, ok, "entry past its ttl reads as a miss")
	assert.Equal(t, 0, c.Size(), "the expired entry is dropped on access")
}

func TestCache_EvictsSoonestExpiring(t *testing.T) {
	c := New(time.Minute, 2)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Put("first", 5, response("one"))
	clock = clock.Add(10 * time.Second)
	c.Put("second", 5, response("two"))
	clock = clock.Add(10 * time.Second)
	c.Put("third", 5, response("three"))

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("first", 5)
	assert.False(t, ok, "the entry expiring soonest makes room")
	_, ok = c.Get("second", 5)
	assert.True(t, ok)
	_, ok = c.Get("third", 5)
	assert.True(t, ok)
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	c := New(time.Minute, 2)

	c.Put("first", 5, response("one"))
	c.Put("second", 5, response("two"))
	c.Put("first", 5, response("one again"))

	assert.Equal(t, 2, c.Size())
	got, ok := c.Get("first", 5)
	require.True(t, ok)
	assert.Equal(t, "one again", got.Summary)
}
