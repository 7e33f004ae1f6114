package docid

import (
	"strings"
	"testing"
)

func TestFromContentDeterministic(t *testing.T) {
	a := FromContent([]byte("hello world"))
	b := FromContent([]byte("hello world"))
	if a != b {
		t.Errorf("same content gave different IDs: %s vs %s", a, b)
	}
	c := FromContent([]byte("hello worlds"))
	if a == c {
		t.Error("different content gave the same ID")
	}
	if len(a) != 64 {
		t.Errorf("ID length = %d, want 64 hex chars", len(a))
	}
}

func TestFromPathStable(t *testing.T) {
	a := FromPath("/data/files/report.pdf")
	b := FromPath("/data/files/../files/report.pdf")
	if a != b {
		t.Error("equivalent paths should yield the same ID")
	}
	if a == FromPath("/data/files/other.pdf") {
		t.Error("different paths should yield different IDs")
	}
}

func TestFromPathAndContentDistinct(t *testing.T) {
	p := "/data/a.txt"
	if FromPath(p) == FromContent([]byte(p)) {
		t.Error("path IDs must not collide with content IDs for the same string")
	}
}

func TestChunkID(t *testing.T) {
	doc := FromContent([]byte("doc"))
	c0 := ChunkID(doc, 0)
	c1 := ChunkID(doc, 1)
	if c0 == c1 {
		t.Error("chunk IDs for different indexes must differ")
	}
	if !strings.HasPrefix(c0, doc) {
		t.Errorf("chunk ID %s should start with document ID", c0)
	}
	if c0 != ChunkID(doc, 0) {
		t.Error("chunk ID must be deterministic")
	}
	if c0 >= c1 {
		t.Error("zero-padded chunk IDs should sort in chunk order")
	}
}
