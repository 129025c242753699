package loop

import (
	"context"
	"time"

	"github.com/sergeknystautas/arachne/internal/forge"
)

// Handlers are the callbacks EventLoop.Run dispatches to once per drained
// frame.
type Handlers struct {
	OnKey         func(key rune)
	OnResize      func(width, height int)
	OnFsChanged   func(repoID string)
	OnForgeTick   func(repoID string)
	OnForgeResult func(repoID string, net *forge.ForgeNetwork, err error)
}

// PaneView is the narrow surface EventLoop needs to keep a pane's viewport
// synchronized with its peers' selected time (spec.md §1, §4.7, §9): read
// the active pane's selected time, push it into every other registered
// pane. Panes never hold pointers to each other — only the driver, via
// this registration, ever sees the full list (spec.md §9).
type PaneView interface {
	SelectedTime() int64
	SyncToTime(ts int64)
}

// EventLoop is a single-threaded cooperative scheduler: exactly one
// goroutine (Run's caller) ever touches pane state; every other goroutine
// (the fsnotify watcher, the forge-poll tickers) only ever produces
// AppEvents onto a shared channel.
type EventLoop struct {
	events  chan AppEvent
	watcher *Watcher

	tickers   map[string]*time.Ticker
	done      map[string]chan struct{}
	intervals map[string]time.Duration

	panes      []PaneView
	activePane func() int
}

// New creates an EventLoop with a debounced filesystem watcher feeding it.
func New(debounce time.Duration) (*EventLoop, error) {
	events := make(chan AppEvent, 64)
	w, err := NewWatcher(debounce, events)
	if err != nil {
		return nil, err
	}
	w.Start()

	return &EventLoop{
		events:    events,
		watcher:   w,
		tickers:   make(map[string]*time.Ticker),
		done:      make(map[string]chan struct{}),
		intervals: make(map[string]time.Duration),
	}, nil
}

// RegisterRepo starts watching repoPath's .git metadata and begins a
// poll ticker emitting EventForgeTick every pollInterval for repoID.
func (l *EventLoop) RegisterRepo(repoID, repoPath string, pollInterval time.Duration) error {
	if err := l.watcher.WatchRepo(repoID, repoPath); err != nil {
		return err
	}
	if pollInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(pollInterval)
	done := make(chan struct{})
	l.tickers[repoID] = ticker
	l.done[repoID] = done
	l.intervals[repoID] = pollInterval

	go func() {
		for {
			select {
			case <-ticker.C:
				select {
				case l.events <- AppEvent{Kind: EventForgeTick, ForgeRepoID: repoID}:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()
	return nil
}

// DelayForgeTick pushes repoID's next poll tick out to no earlier than
// until, replacing its ticker with a one-shot timer for the remaining
// delay; the regular interval ticker resumes immediately afterward. This
// lets an ErrForgeRate result (carrying the forge's own reset time) avoid
// polling straight back into the same rate limit.
func (l *EventLoop) DelayForgeTick(repoID string, until time.Time) {
	ticker, ok := l.tickers[repoID]
	if !ok {
		return
	}
	delay := time.Until(until)
	if delay <= 0 {
		return
	}
	ticker.Stop()
	done := l.done[repoID]
	resumeInterval := l.intervals[repoID]

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-done:
			return
		}
		select {
		case l.events <- AppEvent{Kind: EventForgeTick, ForgeRepoID: repoID}:
		case <-done:
			return
		}
		select {
		case <-done:
		default:
			ticker.Reset(resumeInterval)
		}
	}()
}

// UnregisterRepo stops watching and polling repoID.
func (l *EventLoop) UnregisterRepo(repoID string) {
	l.watcher.UnwatchRepo(repoID)
	if ticker, ok := l.tickers[repoID]; ok {
		ticker.Stop()
		close(l.done[repoID])
		delete(l.tickers, repoID)
		delete(l.done, repoID)
		delete(l.intervals, repoID)
	}
}

// Emit injects an event (key presses, terminal resizes, forge results)
// produced outside the watcher/ticker goroutines.
func (l *EventLoop) Emit(ev AppEvent) {
	l.events <- ev
}

// SetPanes registers the full pane list and a getter for which index is
// currently active, so Run can synchronize peer viewports by time after
// every frame (spec.md §4.7, §8 scenario 5). Pass nil to disable syncing.
func (l *EventLoop) SetPanes(panes []PaneView, activePane func() int) {
	l.panes = panes
	l.activePane = activePane
}

// syncViewports moves every non-active pane's selection to the row closest
// in time to the active pane's current selection, per spec.md §1(g)'s
// "keeps viewports time-synchronized" and §8 scenario 5.
func (l *EventLoop) syncViewports() {
	if l.activePane == nil || len(l.panes) == 0 {
		return
	}
	active := l.activePane()
	if active < 0 || active >= len(l.panes) {
		return
	}
	ts := l.panes[active].SelectedTime()
	for i, p := range l.panes {
		if i == active {
			continue
		}
		p.SyncToTime(ts)
	}
}

// Stop tears down the watcher and every repo's poll ticker.
func (l *EventLoop) Stop() {
	l.watcher.Stop()
	for repoID := range l.tickers {
		l.UnregisterRepo(repoID)
	}
}

// Run blocks, dispatching events to h until ctx is cancelled. Each
// iteration blocks for the first event, then drains whatever else is
// already queued without blocking, collapsing repeated EventFsChanged /
// EventForgeTick for the same repo into a single dispatch — a debounce
// burst that arrives as several fs events should still trigger exactly
// one rebuild per frame. After dispatch, if SetPanes registered a pane
// list, every non-active pane's viewport is synced to the active pane's
// selected time before the next frame's render (spec.md §1(g), §8
// scenario 5).
func (l *EventLoop) Run(ctx context.Context, h Handlers) error {
	for {
		var first AppEvent
		select {
		case <-ctx.Done():
			return ctx.Err()
		case first = <-l.events:
		}

		frame := []AppEvent{first}
	drain:
		for {
			select {
			case ev := <-l.events:
				frame = append(frame, ev)
			default:
				break drain
			}
		}

		dispatchFrame(collapse(frame), h)
		l.syncViewports()

		if containsQuit(frame) {
			return nil
		}
	}
}

// collapse keeps every key/resize/forge-result event in order but folds
// repeated FsChanged/ForgeTick events for the same repo into the last
// occurrence, since only the most recent one matters once collapsed into
// a single rebuild.
func collapse(frame []AppEvent) []AppEvent {
	lastFsIndex := make(map[string]int)
	lastTickIndex := make(map[string]int)
	for i, ev := range frame {
		switch ev.Kind {
		case EventFsChanged:
			lastFsIndex[ev.RepoID] = i
		case EventForgeTick:
			lastTickIndex[ev.ForgeRepoID] = i
		}
	}

	var out []AppEvent
	for i, ev := range frame {
		switch ev.Kind {
		case EventFsChanged:
			if lastFsIndex[ev.RepoID] == i {
				out = append(out, ev)
			}
		case EventForgeTick:
			if lastTickIndex[ev.ForgeRepoID] == i {
				out = append(out, ev)
			}
		default:
			out = append(out, ev)
		}
	}
	return out
}

func containsQuit(frame []AppEvent) bool {
	for _, ev := range frame {
		if ev.Kind == EventQuit {
			return true
		}
	}
	return false
}

func dispatchFrame(frame []AppEvent, h Handlers) {
	for _, ev := range frame {
		switch ev.Kind {
		case EventKey:
			if h.OnKey != nil {
				h.OnKey(ev.Key)
			}
		case EventResize:
			if h.OnResize != nil {
				h.OnResize(ev.Width, ev.Height)
			}
		case EventFsChanged:
			if h.OnFsChanged != nil {
				h.OnFsChanged(ev.RepoID)
			}
		case EventForgeTick:
			if h.OnForgeTick != nil {
				h.OnForgeTick(ev.ForgeRepoID)
			}
		case EventForgeResult:
			if h.OnForgeResult != nil {
				h.OnForgeResult(ev.ForgeRepoID, ev.ForgeResult, ev.ForgeErr)
			}
		}
	}
}
