package embedding

import (
	"context"
	"sync"
	"testing"
)

// countingInner tracks which texts reach the backend.
type countingInner struct {
	dims       int
	mu         sync.Mutex
	embedCalls int
	batches    [][]string
}

func (c *countingInner) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.embedCalls++
	c.mu.Unlock()
	vec := make([]float32, c.dims)
	vec[0] = float32(len(text))
	return vec, nil
}

func (c *countingInner) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batches = append(c.batches, append([]string(nil), texts...))
	c.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, c.dims)
		vec[0] = float32(len(text))
		out[i] = vec
	}
	return out, nil
}

func (c *countingInner) Dimensions() int { return c.dims }
func (c *countingInner) Close() error    { return nil }

func TestCachedEmbedderHit(t *testing.T) {
	inner := &countingInner{dims: 3}
	e := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := e.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.embedCalls != 1 {
		t.Errorf("backend calls = %d, want 1", inner.embedCalls)
	}
	if v1[0] != v2[0] {
		t.Error("cached vector differs from original")
	}
}

func TestCachedEmbedderBatchMisses(t *testing.T) {
	inner := &countingInner{dims: 3}
	e := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	if _, err := e.EmbedBatch(ctx, []string{"a", "bb"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	out, err := e.EmbedBatch(ctx, []string{"a", "ccc", "bb"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(inner.batches) != 2 {
		t.Fatalf("backend batches = %d, want 2", len(inner.batches))
	}
	second := inner.batches[1]
	if len(second) != 1 || second[0] != "ccc" {
		t.Errorf("second backend batch = %v, want only the miss", second)
	}
	// Order preserved: a=1, ccc=3, bb=2 by first element.
	want := []float32{1, 3, 2}
	for i, vec := range out {
		if vec[0] != want[i] {
			t.Errorf("out[%d][0] = %v, want %v", i, vec[0], want[i])
		}
	}
}

func TestCachedEmbedderDimensions(t *testing.T) {
	e := NewCachedEmbedder(&countingInner{dims: 5}, 4)
	if e.Dimensions() != 5 {
		t.Errorf("Dimensions = %d, want 5", e.Dimensions())
	}
}
