// Package loop implements the single-threaded cooperative event loop
// (spec.md §5): one goroutine drains a merged event channel per frame,
// collapsing redundant filesystem notifications before triggering a
// rebuild, while background goroutines (the fsnotify watcher, the forge
// poll ticker) only ever produce events onto that channel.
package loop

import "github.com/sergeknystautas/arachne/internal/forge"

// EventKind discriminates AppEvent's payload.
type EventKind int

const (
	EventKey EventKind = iota
	EventResize
	EventFsChanged
	EventForgeTick
	EventForgeResult
	EventQuit
)

// AppEvent is the single type flowing through the merged event channel.
type AppEvent struct {
	Kind EventKind

	// EventKey
	Key rune

	// EventResize
	Width, Height int

	// EventFsChanged
	RepoID string

	// EventForgeTick / EventForgeResult
	ForgeRepoID string
	ForgeResult *forge.ForgeNetwork
	ForgeErr    error
}
