package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize      = 800
	DefaultMinChunkLength = 50
)

// Chunk is one fixed-size window of a document. Index is the window position,
// so skipped windows leave gaps.
type Chunk struct {
	Index int
	Text  string
}

// ChunkText splits text into windows of size characters and drops windows
// whose trimmed length is below minLen.
func ChunkText(text string, size, minLen int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]Chunk, 0, len(runes)/size+1)
	for i, start := 0, 0; start < len(runes); i, start = i+1, start+size {
		end := min(start+size, len(runes))
		window := string(runes[start:end])
		if utf8.RuneCountInString(strings.TrimSpace(window)) < minLen {
			continue
		}
		chunks = append(chunks, Chunk{Index: i, Text: window})
	}
	return chunks
}
