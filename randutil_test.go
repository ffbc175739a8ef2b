package formparse

// Shared randomized-chunking test helper, modeled on the teacher's
// utils_test.go: feeding a body to a streaming parser in a random sequence
// of chunk sizes, over several trials, flushes out any state-machine bug
// that only shows up at an unlucky buffer boundary.

import (
	"math/rand"
	"testing"
)

// randChunkSizes splits n bytes into a random sequence of chunk lengths,
// each between 1 and max, summing to exactly n.
func randChunkSizes(n, max int) []int {
	if max < 1 {
		max = 1
	}
	var sizes []int
	for n > 0 {
		c := 1 + rand.Intn(max)
		if c > n {
			c = n
		}
		sizes = append(sizes, c)
		n -= c
	}
	return sizes
}

// feedRandomChunks writes body to write in a random sequence of chunk
// sizes (capped at maxChunk) rather than all at once, exercising the same
// resumable-state-machine guarantee every parser in this module relies on.
func feedRandomChunks(t *testing.T, body []byte, maxChunk int, write func(data []byte, start, end int) (int, error)) {
	t.Helper()
	for _, size := range randChunkSizes(len(body), maxChunk) {
		chunk := body[:size]
		body = body[size:]
		if _, err := write(chunk, 0, len(chunk)); err != nil {
			t.Fatalf("write %d-byte chunk: %v", len(chunk), err)
		}
	}
}
