package cartridge

import (
	"fmt"
	"sync"
)

// Identifier kind prefixes. Each kind numbers independently.
const (
	KindManifest     = "man"
	KindOrganization = "org"
	KindItem         = "item"
	KindResource     = "res"
)

// Allocator issues manifest identifiers deterministically. Each kind
// carries its own monotonic counter starting at 1; identifiers render as
// <prefix>-NNNN, zero-padded to four digits and widening past 9999. No
// clock or randomness is involved, so identifiers depend only on the
// allocation order.
//
// Allocator is safe for concurrent use: access is serialized, which keeps
// issued identifiers dense and unique under parallel callers. Callers that
// need reproducible numbering must still allocate in a deterministic order.
type Allocator struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewAllocator creates an allocator with all counters at zero.
func NewAllocator() *Allocator {
	return &Allocator{counters: make(map[string]int)}
}

// Next returns the next identifier for the given kind.
func (a *Allocator) Next(kind string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[kind]++
	return fmt.Sprintf("%s-%04d", kind, a.counters[kind])
}

// Count returns how many identifiers of the kind have been issued.
func (a *Allocator) Count(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters[kind]
}
