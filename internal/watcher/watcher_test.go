package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatcher(t *testing.T, delay time.Duration) *FileWatcher {
	t.Helper()
	w, err := NewFileWatcher(delay, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	return w
}

type recorder struct {
	mu      sync.Mutex
	batches [][]ChangeEvent
}

func (r *recorder) handle(events []ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)

	return nil
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var paths []string
	for _, batch := range r.batches {
		for _, event := range batch {
			paths = append(paths, filepath.Base(event.Path))
		}
	}

	return paths
}

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestAddPath(t *testing.T) {
	w := newWatcher(t, 50*time.Millisecond)

	assert.NoError(t, w.AddPath(t.TempDir()))
	assert.Error(t, w.AddPath(filepath.Join(t.TempDir(), "missing")))
}

func TestWatchReportsSourceChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "scss"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0o755))

	w := newWatcher(t, 50*time.Millisecond)
	w.AddFilter(SourceFilter)
	w.AddFilter(NoHiddenFilter)
	w.AddFilter(NotUnder(filepath.Join(root, "dist")))
	w.SkipDirs(SkipUnder(filepath.Join(root, "dist")))
	rec := &recorder{}
	w.AddHandler(rec.handle)
	require.NoError(t, w.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "scss", "main.scss"), []byte("a{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "main.css"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool { return len(rec.paths()) > 0 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	assert.ElementsMatch(t, []string{"main.scss"}, rec.paths())
}

func TestWatchPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := newWatcher(t, 50*time.Millisecond)
	w.AddFilter(SourceFilter)
	rec := &recorder{}
	w.AddHandler(rec.handle)
	require.NoError(t, w.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	dir := filepath.Join(root, "partials")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nav.hbs"), []byte("<nav/>"), 0o644))

	require.Eventually(t, func() bool {
		for _, p := range rec.paths() {
			if p == "nav.hbs" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAddRecursiveSkipsDirectories(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"src", "node_modules/pkg", ".git", "dist"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	w := newWatcher(t, 50*time.Millisecond)
	w.SkipDirs(SkipHidden)
	w.SkipDirs(SkipNodeModules)
	w.SkipDirs(SkipUnder(filepath.Join(root, "dist")))
	require.NoError(t, w.AddRecursive(root))

	watched := w.watcher.WatchList()
	assert.Contains(t, watched, filepath.Join(root, "src"))
	assert.NotContains(t, watched, filepath.Join(root, "node_modules"))
	assert.NotContains(t, watched, filepath.Join(root, "node_modules", "pkg"))
	assert.NotContains(t, watched, filepath.Join(root, ".git"))
	assert.NotContains(t, watched, filepath.Join(root, "dist"))
}

func TestDebouncerCollapsesBursts(t *testing.T) {
	debouncer := newDebouncer(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go debouncer.start(ctx)

	debouncer.events <- ChangeEvent{Path: "b.hbs", Type: EventTypeCreated}
	debouncer.events <- ChangeEvent{Path: "a.scss", Type: EventTypeModified}
	debouncer.events <- ChangeEvent{Path: "b.hbs", Type: EventTypeModified}

	select {
	case events := <-debouncer.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.scss", events[0].Path)
		assert.Equal(t, "b.hbs", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type, "the last event per path wins")
	case <-time.After(2 * time.Second):
		t.Fatal("no batch flushed")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestFilters(t *testing.T) {
	testCases := []struct {
		path   string
		source bool
		hidden bool
	}{
		{"src/js/index.js", true, true},
		{"src/scss/main.scss", true, true},
		{"src/templates/pages/home.hbs", true, true},
		{"src/content/guide.md", true, true},
		{"src/assets/images/logo.PNG", true, true},
		{"README.txt", false, true},
		{"src/.main.scss.swp", false, false},
		{".env", true, true},
		{".sitepack.yml", true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.source, SourceFilter(tc.path))
			assert.Equal(t, tc.hidden, NoHiddenFilter(tc.path))
		})
	}
}

func TestSkipUnder(t *testing.T) {
	skip := SkipUnder("/site/dist")

	assert.True(t, skip("/site/dist"))
	assert.True(t, skip("/site/dist/assets/css"))
	assert.False(t, skip("/site/distribution"))
	assert.False(t, skip("/site/src"))
	assert.True(t, NotUnder("/site/dist")("/site/src/main.scss"))
	assert.False(t, NotUnder("/site/dist")("/site/dist/main.css"))
	assert.True(t, SkipNodeModules("/site/node_modules"))
	assert.True(t, SkipHidden("/site/.dist-1234"))
}

func TestConcurrentWritesAreBatched(t *testing.T) {
	root := t.TempDir()
	w := newWatcher(t, 100*time.Millisecond)
	rec := &recorder{}
	w.AddHandler(rec.handle)
	require.NoError(t, w.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	time.Sleep(50 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, os.WriteFile(filepath.Join(root, fmt.Sprintf("page%d.hbs", i)), []byte("x"), 0o644))
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return len(rec.paths()) > 0 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	assert.LessOrEqual(t, len(rec.paths()), 10)
}
