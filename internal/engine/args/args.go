// Package args holds the ordered compiler argument list used for every parse.
package args

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// Snapshot is an immutable view of the argument list.
type Snapshot struct {
	args       []string
	hash       uint64
	generation uint64
}

// Args returns a copy of the arguments in call order.
func (s *Snapshot) Args() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.args)
}

// Len reports the number of arguments.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.args)
}

// Hash identifies the argument list; equal lists hash equally.
func (s *Snapshot) Hash() uint64 {
	if s == nil {
		return hashArgs(nil)
	}
	return s.hash
}

// Generation counts how many times the list was replaced.
func (s *Snapshot) Generation() uint64 {
	if s == nil {
		return 0
	}
	return s.generation
}

// Store owns the active argument list. Readers load the snapshot pointer
// without locking; writers serialise only around the pointer swap.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

func NewStore(initial []string) *Store {
	s := &Store{}
	s.current.Store(newSnapshot(initial, 0))
	return s
}

// Set replaces the argument list. Cached units become stale through their
// fingerprints; nothing is evicted here.
func (s *Store) Set(list []string) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current.Load()
	next := newSnapshot(list, prev.Generation()+1)
	s.current.Store(next)
	return next
}

// Get returns the current snapshot.
func (s *Store) Get() *Snapshot {
	return s.current.Load()
}

func newSnapshot(list []string, generation uint64) *Snapshot {
	cloned := slices.Clone(list)
	return &Snapshot{args: cloned, hash: hashArgs(cloned), generation: generation}
}

// hashArgs length-prefixes each argument so ["-a", "b"] and ["-ab"] differ.
func hashArgs(list []string) uint64 {
	h := xxh3.New()
	var lenBuf [8]byte
	for _, arg := range list {
		n := uint64(len(arg))
		for i := range lenBuf {
			lenBuf[i] = byte(n >> (8 * i))
		}
		_, _ = h.Write(lenBuf[:])
		_, _ = h.WriteString(arg)
	}
	return h.Sum64()
}
