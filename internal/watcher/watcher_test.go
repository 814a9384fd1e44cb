package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/config"
)

type eventLog struct {
	mu      sync.Mutex
	files   map[string]string // path -> course
	removed map[string]string
}

func newEventLog() *eventLog {
	return &eventLog{files: make(map[string]string), removed: make(map[string]string)}
}

func (l *eventLog) onFile(courseID, path string) {
	l.mu.Lock()
	l.files[filepath.Clean(path)] = courseID
	l.mu.Unlock()
}

func (l *eventLog) onRemove(courseID, path string) {
	l.mu.Lock()
	l.removed[filepath.Clean(path)] = courseID
	l.mu.Unlock()
}

func (l *eventLog) fileCourse(path string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.files[filepath.Clean(path)]
	return c, ok
}

func (l *eventLog) removedCourse(path string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.removed[filepath.Clean(path)]
	return c, ok
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func startWatcher(t *testing.T, courses []config.WatchCourse, extensions []string) *eventLog {
	t.Helper()
	log := newEventLog()
	w := NewWatcher(courses, extensions, true, log.onFile, log.onRemove, WithDebounce(30*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return log
}

func TestWatcher_CourseAttribution(t *testing.T) {
	bioDir := t.TempDir()
	chemDir := t.TempDir()
	log := startWatcher(t, []config.WatchCourse{
		{CourseID: "bio101", Directory: bioDir},
		{CourseID: "chem101", Directory: chemDir},
	}, []string{".txt"})

	bioFile := filepath.Join(bioDir, "notes.txt")
	chemFile := filepath.Join(chemDir, "lab.txt")
	if err := os.WriteFile(bioFile, []byte("cells"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(chemFile, []byte("acids"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		_, ok1 := log.fileCourse(bioFile)
		_, ok2 := log.fileCourse(chemFile)
		return ok1 && ok2
	})
	if c, _ := log.fileCourse(bioFile); c != "bio101" {
		t.Errorf("bio file attributed to %q", c)
	}
	if c, _ := log.fileCourse(chemFile); c != "chem101" {
		t.Errorf("chem file attributed to %q", c)
	}
}

func TestWatcher_ExtensionFilterAndRemove(t *testing.T) {
	dir := t.TempDir()
	log := startWatcher(t, []config.WatchCourse{{CourseID: "bio101", Directory: dir}}, []string{".txt"})

	keep := filepath.Join(dir, "keep.txt")
	skip := filepath.Join(dir, "skip.tmp")
	if err := os.WriteFile(keep, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(skip, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { _, ok := log.fileCourse(keep); return ok })
	if _, ok := log.fileCourse(skip); ok {
		t.Error("filtered extension should not fire")
	}

	if err := os.Remove(keep); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { _, ok := log.removedCourse(keep); return ok })
	if c, _ := log.removedCourse(keep); c != "bio101" {
		t.Errorf("remove attributed to %q", c)
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	log := startWatcher(t, []config.WatchCourse{{CourseID: "bio101", Directory: dir}}, []string{".txt"})

	sub := filepath.Join(dir, "week1")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a beat to pick up the new directory.
	time.Sleep(100 * time.Millisecond)

	f := filepath.Join(sub, "slides.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { _, ok := log.fileCourse(f); return ok })
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	pre := filepath.Join(dir, "already.txt")
	if err := os.WriteFile(pre, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := newEventLog()
	w := NewWatcher([]config.WatchCourse{{CourseID: "bio101", Directory: dir}},
		[]string{".txt"}, true, log.onFile, log.onRemove)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	if c, ok := log.fileCourse(pre); !ok || c != "bio101" {
		t.Errorf("existing file not reported: %v %q", ok, c)
	}
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-yet")
	startWatcher(t, []config.WatchCourse{{CourseID: "bio101", Directory: root}}, nil)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("root was not created: %v", err)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b.pdf", []string{"pdf", "docx"}, true},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/ab", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
