package ai

import (
	"strings"
	"sync"
)

// Accumulator collects streamed chunks in arrival order.
type Accumulator struct {
	mu     sync.Mutex
	buf    strings.Builder
	chunks int
}

// Append adds chunk and returns the text received so far.
func (a *Accumulator) Append(chunk string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.WriteString(chunk)
	a.chunks++
	return a.buf.String()
}

// String returns the concatenation of every appended chunk.
func (a *Accumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// Chunks returns how many chunks were appended.
func (a *Accumulator) Chunks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chunks
}
