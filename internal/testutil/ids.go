package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs returns a generator yielding "<prefix>1", "<prefix>2", ...
//
// This makes tentative comment IDs and store IDs predictable so golden
// traces are byte-identical across runs.
//
// Thread-safety: the returned function is safe for concurrent use.
func SequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}
