package cache

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"autocomplete/internal/core/errors"
	"autocomplete/internal/engine/args"
	"autocomplete/internal/engine/frontend"
	"autocomplete/internal/engine/frontend/frontendtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestCache(t *testing.T, fe frontend.Frontend, store *args.Store, opts ...func(*Options)) *Cache {
	t.Helper()
	o := Options{Frontend: fe, Args: store}
	for _, fn := range opts {
		fn(&o)
	}
	c := New(o)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func slotCount(c *Cache) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

func TestAcquire_ReusesMatchingUnit(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	path := writeFile(t, t.TempDir(), "a.cpp", "int x;")

	first, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	first.Release()

	second, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	defer second.Release()

	assert.Equal(t, 1, fe.Parses())
	assert.Same(t, first.Entry(), second.Entry())
	assert.Equal(t, []byte("int x;"), second.Entry().Source())
}

func TestAcquire_ArgumentChangeForcesReparse(t *testing.T) {
	fe := frontendtest.New()
	store := args.NewStore([]string{"-std=c++11"})
	c := newTestCache(t, fe, store)
	path := writeFile(t, t.TempDir(), "a.cpp", "int x;")

	lease, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	lease.Release()

	store.Set([]string{"-std=c++17"})
	assert.Equal(t, 1, fe.Parses(), "setting arguments must not parse eagerly")
	assert.Equal(t, 1, c.Len(), "setting arguments must not evict eagerly")

	lease, err = c.Acquire(context.Background(), path)
	require.NoError(t, err)
	defer lease.Release()

	assert.Equal(t, 2, fe.Parses())
	assert.Equal(t, 1, fe.Disposes(), "replaced unit is disposed")
	req, _ := fe.LastRequest()
	assert.Equal(t, []string{"-std=c++17"}, req.Args)
	assert.NotNil(t, req.Previous, "previous unit offered for incremental reparse")
}

func TestAcquire_ContentChangeForcesReparse(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	dir := t.TempDir()
	path := writeFile(t, dir, "a.c", "int x;")

	lease, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	lease.Release()

	writeFile(t, dir, "a.c", "int y;")
	lease, err = c.Acquire(context.Background(), path)
	require.NoError(t, err)
	defer lease.Release()

	assert.Equal(t, 2, fe.Parses())
	assert.Equal(t, []byte("int y;"), lease.Entry().Source())
}

func TestAcquire_OverlayShadowsDisk(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	path := writeFile(t, t.TempDir(), "a.c", "int disk;")

	c.Sources().SetOverlay(path, []byte("int buffer;"))
	lease, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("int buffer;"), lease.Entry().Source())
	lease.Release()

	assert.True(t, c.Sources().ClearOverlay(path))
	lease, err = c.Acquire(context.Background(), path)
	require.NoError(t, err)
	defer lease.Release()
	assert.Equal(t, []byte("int disk;"), lease.Entry().Source())
	assert.Equal(t, 2, fe.Parses())
}

func TestAcquire_ParseFailureIsNotCached(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	path := writeFile(t, t.TempDir(), "bad.cpp", "int")

	fe.FailParse(path, stderrors.New("boom"), frontend.Diagnostic{
		Severity: frontend.SeverityError,
		Message:  "expected ';'",
		Location: frontend.Location{File: path, Line: 1, Column: 4},
	})

	_, err := c.Acquire(context.Background(), path)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, errors.CodeParse, perr.Code())
	assert.True(t, errors.IsCode(err, errors.CodeParse))
	require.Len(t, perr.Diagnostics, 1)
	assert.Equal(t, "expected ';'", perr.Diagnostics[0].Message)
	assert.Equal(t, errors.CodeParse, perr.Diagnostics[0].Code)
	assert.Equal(t, 0, c.Len())

	fe.FailParse(path, nil)
	lease, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	lease.Release()
	assert.Equal(t, 2, fe.Parses(), "failed parse must be retried")
}

func TestAcquire_MissingFile(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))

	_, err := c.Acquire(context.Background(), filepath.Join(t.TempDir(), "nope.cpp"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, errors.CodeParse, perr.Code())
	require.NotEmpty(t, perr.Diagnostics)
	assert.Equal(t, errors.CodeParse, perr.Diagnostics[0].Code)
	assert.Equal(t, 0, fe.Parses())
}

func TestAcquire_DeletedFileEvictsEntry(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	path := writeFile(t, t.TempDir(), "a.c", "int x;")

	lease, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	lease.Release()

	require.NoError(t, os.Remove(path))
	_, err = c.Acquire(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, fe.Disposes())
}

func TestAcquire_NilHandleIsResourceError(t *testing.T) {
	c := newTestCache(t, nilHandleFrontend{Fake: frontendtest.New()}, args.NewStore(nil))
	path := writeFile(t, t.TempDir(), "a.c", "int x;")

	_, err := c.Acquire(context.Background(), path)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, errors.CodeResource, perr.Code())
}

func TestAcquire_FrontendPanicBecomesError(t *testing.T) {
	fe := frontendtest.New()
	fe.ParseHook = func(frontend.ParseRequest) { panic("frontend bug") }
	c := newTestCache(t, fe, args.NewStore(nil))
	path := writeFile(t, t.TempDir(), "a.c", "int x;")

	_, err := c.Acquire(context.Background(), path)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, errors.CodeResource, perr.Code())
}

func TestEviction_WaitsForLeases(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	path := writeFile(t, t.TempDir(), "a.c", "int x;")

	lease, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Clear())
	assert.Equal(t, 0, fe.Disposes(), "leased unit must outlive eviction")
	assert.Equal(t, 1, fe.Live())

	lease.Release()
	lease.Release()
	assert.Equal(t, 1, fe.Disposes())
	assert.Equal(t, 0, fe.Live())
	assert.False(t, fe.DoubleDisposed())
}

func TestSweep_ExpiresIdleEntries(t *testing.T) {
	fe := frontendtest.New()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, fe, args.NewStore(nil), func(o *Options) {
		o.Now = clock.Now
		o.Expiration = 30 * time.Minute
		o.CheckInterval = 10 * time.Minute
	})
	dir := t.TempDir()
	old := writeFile(t, dir, "old.c", "int a;")
	fresh := writeFile(t, dir, "fresh.c", "int b;")

	for _, p := range []string{old, fresh} {
		lease, err := c.Acquire(context.Background(), p)
		require.NoError(t, err)
		lease.Release()
	}

	clock.Advance(25 * time.Minute)
	lease, err := c.Acquire(context.Background(), fresh)
	require.NoError(t, err)
	lease.Release()

	clock.Advance(10 * time.Minute)
	lease, err = c.Acquire(context.Background(), fresh)
	require.NoError(t, err)
	lease.Release()

	assert.Equal(t, []string{fresh}, c.Paths())
	assert.Equal(t, 1, fe.Disposes())
}

func TestSweep_ZeroExpirationKeepsEntries(t *testing.T) {
	fe := frontendtest.New()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, fe, args.NewStore(nil), func(o *Options) { o.Now = clock.Now })
	path := writeFile(t, t.TempDir(), "a.c", "int a;")

	lease, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	lease.Release()

	clock.Advance(24 * time.Hour)
	assert.Equal(t, 0, c.Sweep())

	c.SetExpiration(time.Hour)
	assert.Equal(t, time.Hour, c.Expiration())
	assert.Equal(t, 1, c.Sweep())
}

func TestMaxEntries_EvictsLeastRecentlyUsed(t *testing.T) {
	fe := frontendtest.New()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, fe, args.NewStore(nil), func(o *Options) {
		o.Now = clock.Now
		o.MaxEntries = 2
	})
	dir := t.TempDir()
	a := writeFile(t, dir, "a.c", "int a;")
	b := writeFile(t, dir, "b.c", "int b;")
	d := writeFile(t, dir, "d.c", "int d;")

	for _, p := range []string{a, b, a, d} {
		clock.Advance(time.Second)
		lease, err := c.Acquire(context.Background(), p)
		require.NoError(t, err)
		lease.Release()
	}

	assert.ElementsMatch(t, []string{a, d}, c.Paths())
}

func TestInvalidate_EvictsDependents(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	dir := t.TempDir()
	header := writeFile(t, dir, "foo.h", "struct Foo {};")
	user := writeFile(t, dir, "user.cpp", "#include \"foo.h\"")
	other := writeFile(t, dir, "other.cpp", "int x;")
	fe.SetDependencies(user, header)

	for _, p := range []string{user, other} {
		lease, err := c.Acquire(context.Background(), p)
		require.NoError(t, err)
		lease.Release()
	}

	assert.Equal(t, []string{user}, c.Invalidate(header))
	assert.Equal(t, []string{other}, c.Paths())
	assert.Nil(t, c.Invalidate())
}

func TestClear_SinglePath(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	dir := t.TempDir()
	a := writeFile(t, dir, "a.c", "int a;")
	b := writeFile(t, dir, "b.c", "int b;")
	for _, p := range []string{a, b} {
		lease, err := c.Acquire(context.Background(), p)
		require.NoError(t, err)
		lease.Release()
	}

	assert.Equal(t, 1, c.Clear(a))
	assert.Equal(t, 0, c.Clear(a))
	assert.Equal(t, []string{b}, c.Paths())

	usage := c.MemoryUsage()
	require.Len(t, usage, 1)
	assert.Equal(t, b, usage[0].Path)
	assert.Positive(t, usage[0].Bytes)
}

func TestSlots_DroppedOnceEmpty(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil), func(o *Options) {
		o.Now = clock.Now
		o.Expiration = time.Minute
		o.MaxEntries = 2
	})
	dir := t.TempDir()

	t.Run("missing files", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			_, err := c.Acquire(context.Background(), filepath.Join(dir, fmt.Sprintf("gone%d.c", i)))
			require.Error(t, err)
		}
		assert.Equal(t, 0, slotCount(c))
	})

	t.Run("failed parse", func(t *testing.T) {
		path := writeFile(t, dir, "bad.c", "int x")
		fe.FailParse(path, stderrors.New("boom"))
		_, err := c.Acquire(context.Background(), path)
		require.Error(t, err)
		fe.FailParse(path, nil)
		assert.Equal(t, 0, slotCount(c))
	})

	t.Run("capacity", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			clock.Advance(time.Second)
			lease, err := c.Acquire(context.Background(), writeFile(t, dir, fmt.Sprintf("f%d.c", i), "int x;"))
			require.NoError(t, err)
			lease.Release()
		}
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, 2, slotCount(c))
	})

	t.Run("sweep", func(t *testing.T) {
		clock.Advance(2 * time.Minute)
		assert.Equal(t, 2, c.Sweep())
		assert.Equal(t, 0, slotCount(c))
	})

	t.Run("clear keeps leased slots", func(t *testing.T) {
		path := writeFile(t, dir, "held.c", "int x;")
		lease, err := c.Acquire(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, 1, c.Clear())
		assert.Equal(t, 0, slotCount(c))
		assert.Equal(t, 1, fe.Live(), "leased unit outlives its slot")
		lease.Release()
		assert.Equal(t, 0, fe.Live())
	})
}

func TestClose_DisposesAndRejects(t *testing.T) {
	fe := frontendtest.New()
	c := New(Options{Frontend: fe})
	path := writeFile(t, t.TempDir(), "a.c", "int a;")

	lease, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	lease.Release()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 0, fe.Live())

	_, err = c.Acquire(context.Background(), path)
	assert.True(t, errors.IsCode(err, errors.CodeResource))
}

func TestAcquire_StaleResultDiscarded(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	dir := t.TempDir()
	path := writeFile(t, dir, "a.c", "old")

	entered := make(chan struct{})
	unblock := make(chan struct{})
	fe.ParseHook = func(req frontend.ParseRequest) {
		if string(req.Source) == "old" {
			close(entered)
			<-unblock
		}
	}

	type result struct {
		lease *Lease
		err   error
	}
	slow := make(chan result, 1)
	go func() {
		l, err := c.Acquire(context.Background(), path)
		slow <- result{l, err}
	}()
	<-entered

	writeFile(t, dir, "a.c", "new")
	fast, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	defer fast.Release()
	assert.Equal(t, []byte("new"), fast.Entry().Source())

	close(unblock)
	got := <-slow
	require.NoError(t, got.err)
	defer got.lease.Release()

	assert.Same(t, fast.Entry(), got.lease.Entry(), "late result must not replace the newer unit")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, fe.Disposes(), "stale unit disposed on arrival")
}

func TestAcquire_CancelledCallerDoesNotAbortParse(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	path := writeFile(t, t.TempDir(), "a.c", "int a;")

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	fe.ParseHook = func(frontend.ParseRequest) {
		once.Do(func() { close(entered) })
		<-unblock
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Acquire(ctx, path)
		done <- err
	}()
	<-entered
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, slotCount(c), "slot kept while its parse runs")

	close(unblock)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)

	lease, err := c.Acquire(context.Background(), path)
	require.NoError(t, err)
	lease.Release()
	assert.Equal(t, 1, fe.Parses())
}

func TestAcquire_ConcurrentSameFile(t *testing.T) {
	fe := frontendtest.New()
	c := newTestCache(t, fe, args.NewStore(nil))
	path := writeFile(t, t.TempDir(), "a.c", "int a;")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := c.Acquire(context.Background(), path)
			if assert.NoError(t, err) {
				lease.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, fe.Live())
	assert.False(t, fe.DoubleDisposed())
}

func TestEntry_Lines(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		count   int
		lengths []int
	}{
		{name: "empty", source: "", count: 1, lengths: []int{0}},
		{name: "no trailing newline", source: "ab\ncde", count: 2, lengths: []int{2, 3}},
		{name: "trailing newline", source: "ab\n", count: 2, lengths: []int{2, 0}},
		{name: "crlf", source: "ab\r\ncd\r\n", count: 3, lengths: []int{2, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entry{source: []byte(tt.source), lineStarts: lineStarts([]byte(tt.source))}
			assert.Equal(t, tt.count, e.LineCount())
			for i, want := range tt.lengths {
				assert.Equal(t, want, e.LineLength(i+1), "line %d", i+1)
			}
			assert.Equal(t, 0, e.LineLength(0))
			assert.Equal(t, 0, e.LineLength(tt.count+1))
		})
	}
}

type nilHandleFrontend struct {
	*frontendtest.Fake
}

func (nilHandleFrontend) Parse(context.Context, frontend.ParseRequest) (frontend.ParseResult, error) {
	return frontend.ParseResult{}, nil
}
