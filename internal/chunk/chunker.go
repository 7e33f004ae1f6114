// Package chunk splits document text into overlapping, size-bounded chunks
// at sentence boundaries.
package chunk

import (
	"strings"

	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/pkg/utils"
)

// MaxChunkSize is the absolute ceiling on chunk length in bytes, independent
// of the configured size. It protects the per-call text limit of the
// embedding service.
const MaxChunkSize = 8000

// DefaultOverlap is the default overlap length in bytes.
const DefaultOverlap = 200

// Chunker packs sentences into chunks of at most size bytes, seeding each
// chunk after the first with a word-aligned tail of its predecessor.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given chunk size and overlap length,
// both in bytes. size is clamped to MaxChunkSize; a non-positive size uses
// MaxChunkSize. overlap is clamped so that packing always makes progress.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 || size > MaxChunkSize {
		size = MaxChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size/2 {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the effective chunk size bound.
func (c *Chunker) Size() int { return c.size }

// Split breaks text into ordered chunks. Text is whitespace-normalized
// first; when the normalized text fits within the size bound a single chunk
// is returned unchanged. A sentence longer than the bound is emitted as its
// own oversized chunk rather than re-split; embedding-stage truncation
// absorbs it.
func (c *Chunker) Split(text string) []models.Chunk {
	text = utils.NormalizeWhitespace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []models.Chunk{{Index: 0, Text: text}}
	}

	var (
		chunks  []models.Chunk
		buf     []string
		bufLen  int // length of buf joined with single spaces
		seedLen int // leading overlap bytes in buf
	)

	appendPart := func(s string) {
		if bufLen > 0 {
			bufLen++
		}
		buf = append(buf, s)
		bufLen += len(s)
	}

	flush := func() string {
		if bufLen == 0 {
			return ""
		}
		joined := strings.Join(buf, " ")
		chunks = append(chunks, models.Chunk{Index: len(chunks), Text: joined, Overlap: seedLen})
		buf = buf[:0]
		bufLen = 0
		seedLen = 0
		return joined
	}

	for _, s := range splitSentences(text) {
		if len(s) > c.size {
			flush()
			chunks = append(chunks, models.Chunk{Index: len(chunks), Text: s})
			continue
		}
		projected := bufLen + len(s)
		if bufLen > 0 {
			projected++
		}
		if projected > c.size && bufLen > 0 {
			emitted := flush()
			if c.overlap > 0 {
				seed := overlapTail(emitted, c.overlap)
				if seed != "" && len(seed)+1+len(s) <= c.size {
					appendPart(seed)
					seedLen = len(seed)
				}
			}
		}
		appendPart(s)
	}
	flush()
	return chunks
}

// splitSentences splits normalized text into sentence units. A boundary is a
// run of '.', '!' or '?' followed by a space; the punctuation stays with its
// sentence. Text without any boundary comes back as a single unit.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	i := 0
	for i < len(text) {
		if !isSentenceEnd(text[i]) {
			i++
			continue
		}
		j := i + 1
		for j < len(text) && isSentenceEnd(text[j]) {
			j++
		}
		if j < len(text) && text[j] == ' ' {
			sentences = append(sentences, text[start:j])
			start = j + 1
			i = j + 1
			continue
		}
		i = j
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// overlapTail returns a word-aligned suffix of text whose length approximates
// overlap bytes. Words are taken from the end until the target is reached.
// Returns "" when text itself is no longer than the overlap.
func overlapTail(text string, overlap int) string {
	if overlap <= 0 || len(text) <= overlap {
		return ""
	}
	words := strings.Fields(text)
	n := 0
	i := len(words)
	for i > 0 && n < overlap {
		i--
		if n > 0 {
			n++
		}
		n += len(words[i])
	}
	return strings.Join(words[i:], " ")
}
