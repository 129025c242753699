// Command arachne wires the core pipeline (config, panes, event loop) to a
// terminal. Input decoding, widget rendering, and color/theme selection are
// deliberately left to the consumer layer; this entrypoint only demonstrates
// the wiring a real TUI front-end would perform.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/exec"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/term"

	"github.com/sergeknystautas/arachne/internal/config"
	"github.com/sergeknystautas/arachne/internal/loop"
	"github.com/sergeknystautas/arachne/internal/pane"
	"github.com/sergeknystautas/arachne/internal/version"
)

// minGitVersion is the git release checkGitVersion compares the system git
// against; an older git only produces a warning.
var minGitVersion = semver.MustParse("2.25.0")

func main() {
	configPath := flag.String("config", "", "path to arachne config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return
	}

	if err := checkGitVersion(); err != nil {
		fmt.Fprintf(os.Stderr, "arachne: %v\n", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arachne: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	panes, err := buildPanes(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arachne: %v\n", err)
		os.Exit(1)
	}
	if len(panes) == 0 {
		fmt.Fprintln(os.Stderr, "arachne: no repositories configured")
		os.Exit(1)
	}

	applyPaneWidths(panes, terminalWidth())

	el, err := loop.New(cfg.WatchDebounce())
	if err != nil {
		fmt.Fprintf(os.Stderr, "arachne: failed to start event loop: %v\n", err)
		os.Exit(1)
	}
	defer el.Stop()

	for i, p := range panes {
		repoID := fmt.Sprintf("pane-%d", i)
		if err := el.RegisterRepo(repoID, p.RepoPath, cfg.PollInterval()); err != nil {
			fmt.Fprintf(os.Stderr, "arachne: watcher disabled for %s: %v\n", p.RepoPath, err)
		}
	}

	active := 0
	paneViews := make([]loop.PaneView, len(panes))
	for i, p := range panes {
		paneViews[i] = p
	}
	el.SetPanes(paneViews, func() int { return active })

	handlers := loop.Handlers{
		OnFsChanged: func(repoID string) {
			idx := paneIndex(repoID)
			if idx < 0 || idx >= len(panes) {
				return
			}
			if err := panes[idx].RebuildFromRepo(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "arachne: rebuild failed for %s: %v\n", panes[idx].RepoPath, err)
			}
		},
		OnKey: func(key rune) {
			switch key {
			case 'q':
				cancel()
			case 'j':
				active = (active + 1) % len(panes)
			case 'k':
				active = (active - 1 + len(panes)) % len(panes)
			case 'J':
				panes[active].MoveSelection(1)
			case 'K':
				panes[active].MoveSelection(-1)
			}
		},
	}

	if err := el.Run(ctx, handlers); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "arachne: event loop exited: %v\n", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.CreateDefault(""), nil
	}
	if !config.ConfigExists(path) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return config.Load(path)
}

func buildPanes(ctx context.Context, cfg *config.Config) ([]*pane.PaneModel, error) {
	var result []*pane.PaneModel
	for _, r := range cfg.RepoList() {
		p := pane.New(r.Path, cfg.MaxCommits, cfg.TrunkBranchesFor(r), r.Name)
		p.ShowForks = cfg.GetShowForks()
		if err := p.RebuildFromRepo(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "arachne: initial load failed for %s: %v\n", r.Path, err)
		}
		result = append(result, p)
	}
	return result, nil
}

// applyPaneWidths distributes the terminal width proportionally to
// √(commit_count) of each pane.
func applyPaneWidths(panes []*pane.PaneModel, totalWidth int) {
	if totalWidth <= 0 || len(panes) == 0 {
		return
	}

	weights := make([]float64, len(panes))
	var sum float64
	for i, p := range panes {
		w := math.Sqrt(float64(len(p.Rows)))
		if w == 0 {
			w = 1
		}
		weights[i] = w
		sum += w
	}
	if sum == 0 {
		return
	}

	for i, p := range panes {
		width := int(float64(totalWidth) * weights[i] / sum)
		if width < 1 {
			width = 1
		}
		p.ViewportSize = width
	}
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 120
	}
	return w
}

var paneIDPattern = regexp.MustCompile(`^pane-(\d+)$`)

func paneIndex(repoID string) int {
	m := paneIDPattern.FindStringSubmatch(repoID)
	if m == nil {
		return -1
	}
	var idx int
	fmt.Sscanf(m[1], "%d", &idx)
	return idx
}

// checkGitVersion warns (non-fatally) when the system git predates
// minGitVersion.
func checkGitVersion() error {
	out, err := exec.Command("git", "--version").Output()
	if err != nil {
		return fmt.Errorf("could not determine git version: %w", err)
	}

	re := regexp.MustCompile(`(\d+\.\d+(\.\d+)?)`)
	m := re.FindString(string(out))
	if m == "" {
		return fmt.Errorf("could not parse git version from %q", string(out))
	}

	v, err := semver.NewVersion(m)
	if err != nil {
		return fmt.Errorf("could not parse git version %q: %w", m, err)
	}
	if v.LessThan(minGitVersion) {
		return fmt.Errorf("git %s is older than the minimum supported %s", v, minGitVersion)
	}
	return nil
}
