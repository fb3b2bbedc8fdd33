package args

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_SetReplacesInOrder(t *testing.T) {
	s := NewStore([]string{"-std=c++11"})
	assert.Equal(t, []string{"-std=c++11"}, s.Get().Args())

	s.Set([]string{"-I/usr/include", "-DFOO=1", "-std=c++17"})
	assert.Equal(t, []string{"-I/usr/include", "-DFOO=1", "-std=c++17"}, s.Get().Args())
	assert.Equal(t, uint64(1), s.Get().Generation())
}

func TestStore_SnapshotIsImmutable(t *testing.T) {
	input := []string{"-DA"}
	s := NewStore(input)
	input[0] = "-DB"
	assert.Equal(t, []string{"-DA"}, s.Get().Args())

	out := s.Get().Args()
	out[0] = "-DC"
	assert.Equal(t, []string{"-DA"}, s.Get().Args())

	old := s.Get()
	s.Set([]string{"-DZ"})
	assert.Equal(t, []string{"-DA"}, old.Args(), "old snapshot must not change after Set")
}

func TestStore_HashSemantics(t *testing.T) {
	a := NewStore([]string{"-a", "b"}).Get()
	b := NewStore([]string{"-ab"}).Get()
	c := NewStore([]string{"-a", "b"}).Get()
	d := NewStore([]string{"b", "-a"}).Get()

	assert.NotEqual(t, a.Hash(), b.Hash(), "argument boundaries are significant")
	assert.Equal(t, a.Hash(), c.Hash(), "equal lists hash equally")
	assert.NotEqual(t, a.Hash(), d.Hash(), "order is significant")
	assert.Equal(t, NewStore(nil).Get().Hash(), NewStore([]string{}).Get().Hash())
}

func TestStore_SetIsIdempotentForFingerprints(t *testing.T) {
	s := NewStore([]string{"-DX"})
	before := s.Get().Hash()
	s.Set([]string{"-DX"})
	assert.Equal(t, before, s.Get().Hash())
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Set([]string{"-DX", "-DY"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := s.Get()
				if n := snap.Len(); n != 0 && n != 2 {
					t.Errorf("torn snapshot of length %d", n)
				}
			}
		}()
	}
	wg.Wait()
}

func TestSnapshot_NilSafe(t *testing.T) {
	var snap *Snapshot
	assert.Nil(t, snap.Args())
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, hashArgs(nil), snap.Hash())
}
