package loop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches each repo's .git metadata directory and emits a debounced
// EventFsChanged once activity on a repo settles (spec.md §4.6, §5).
//
// Adapted from the teacher's git-status watcher: an fsnotify.Watcher feeding
// a single goroutine's select loop, with one debounce timer per watched
// entity instead of a per-repo git-status refresh call.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	out      chan<- AppEvent

	watchedPathsMu sync.Mutex
	watchedPaths   map[string][]string // fs path -> repo IDs

	timersMu sync.Mutex
	timers   map[string]*time.Timer

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a Watcher that writes EventFsChanged onto out.
func NewWatcher(debounce time.Duration, out chan<- AppEvent) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	return &Watcher{
		fsw:          fsw,
		debounce:     debounce,
		out:          out,
		watchedPaths: make(map[string][]string),
		timers:       make(map[string]*time.Timer),
		stopCh:       make(chan struct{}),
	}, nil
}

// Start launches the watcher's event-processing goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop closes the watcher and cancels pending debounce timers. Safe to
// call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.fsw.Close()

		w.timersMu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.timersMu.Unlock()
	})
}

// WatchRepo adds watches for repoID's .git metadata (HEAD, refs/, logs/).
func (w *Watcher) WatchRepo(repoID, repoPath string) error {
	gitDir, err := resolveGitDir(repoPath)
	if err != nil {
		return err
	}

	w.addWatch(gitDir, repoID)
	w.watchRecursive(filepath.Join(gitDir, "refs"), repoID)
	w.watchRecursive(filepath.Join(gitDir, "logs"), repoID)
	return nil
}

// UnwatchRepo removes all watches and the pending timer for repoID.
func (w *Watcher) UnwatchRepo(repoID string) {
	w.watchedPathsMu.Lock()
	var toRemove []string
	for path, ids := range w.watchedPaths {
		filtered := removeString(ids, repoID)
		if len(filtered) == 0 {
			toRemove = append(toRemove, path)
			delete(w.watchedPaths, path)
		} else {
			w.watchedPaths[path] = filtered
		}
	}
	w.watchedPathsMu.Unlock()

	for _, path := range toRemove {
		w.fsw.Remove(path)
	}

	w.timersMu.Lock()
	if t, ok := w.timers[repoID]; ok {
		t.Stop()
		delete(w.timers, repoID)
	}
	w.timersMu.Unlock()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watchedPathsMu.Lock()
			ids := w.watchedPaths[filepath.Dir(event.Name)]
			w.watchedPathsMu.Unlock()
			for _, id := range ids {
				w.addWatch(event.Name, id)
			}
		}
	}

	for _, repoID := range w.findRepoIDs(event.Name) {
		w.resetDebounce(repoID)
	}
}

func (w *Watcher) findRepoIDs(path string) []string {
	w.watchedPathsMu.Lock()
	defer w.watchedPathsMu.Unlock()

	if ids, ok := w.watchedPaths[path]; ok {
		return ids
	}
	dir := filepath.Dir(path)
	for dir != "/" && dir != "." {
		if ids, ok := w.watchedPaths[dir]; ok {
			return ids
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

func (w *Watcher) resetDebounce(repoID string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if t, ok := w.timers[repoID]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[repoID] = time.AfterFunc(w.debounce, func() {
		select {
		case w.out <- AppEvent{Kind: EventFsChanged, RepoID: repoID}:
		case <-w.stopCh:
		}
	})
}

func (w *Watcher) addWatch(path, repoID string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	w.watchedPathsMu.Lock()
	ids := w.watchedPaths[path]
	needsAdd := !containsString(ids, repoID) && len(ids) == 0
	if !containsString(ids, repoID) {
		w.watchedPaths[path] = append(ids, repoID)
	}
	w.watchedPathsMu.Unlock()

	if needsAdd {
		w.fsw.Add(path)
	}
}

func (w *Watcher) watchRecursive(dir, repoID string) {
	if _, err := os.Stat(dir); err != nil {
		return
	}
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			w.addWatch(path, repoID)
		}
		return nil
	})
}

// resolveGitDir locates the metadata directory WatchRepo should watch for
// repoPath. A plain checkout has it as repoPath/.git; a worktree instead
// leaves a "gitdir: <path>" pointer file there and keeps its real metadata
// elsewhere, which this follows before handing back an absolute, cleaned
// path.
func resolveGitDir(repoPath string) (string, error) {
	pointer := filepath.Join(repoPath, ".git")
	st, err := os.Lstat(pointer)
	if err != nil {
		return "", fmt.Errorf("no .git found at %s: %w", repoPath, err)
	}
	if st.IsDir() {
		return pointer, nil
	}

	raw, err := os.ReadFile(pointer)
	if err != nil {
		return "", fmt.Errorf("failed to read .git file: %w", err)
	}
	line := strings.TrimSpace(string(raw))
	const prefix = "gitdir: "
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("unexpected .git file content: %s", line)
	}

	target := strings.TrimPrefix(line, prefix)
	if !filepath.IsAbs(target) {
		target = filepath.Join(repoPath, target)
	}
	target = filepath.Clean(target)
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("resolved gitdir does not exist: %s: %w", target, err)
	}
	return target, nil
}

// containsString reports whether val is already tracked for a watched path,
// so addWatch can skip re-adding a repo ID that's already subscribed.
func containsString(ids []string, val string) bool {
	for _, id := range ids {
		if id == val {
			return true
		}
	}
	return false
}

// removeString drops val from ids, used when UnwatchRepo stops tracking one
// repo without disturbing siblings still watching the same path.
func removeString(ids []string, val string) []string {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != val {
			kept = append(kept, id)
		}
	}
	return kept
}
