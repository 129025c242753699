package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "arachne.yaml")

	valid := Config{
		Repos: []Repo{
			{Name: "myproject", Path: tmpDir},
		},
		TrunkBranches: []string{"main"},
	}

	data, err := yaml.Marshal(valid)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Repos) != 1 || cfg.Repos[0].Path != tmpDir {
		t.Errorf("Repos = %+v, want one repo at %q", cfg.Repos, tmpDir)
	}
	if cfg.MaxCommits != DefaultMaxCommits {
		t.Errorf("MaxCommits = %d, want default %d", cfg.MaxCommits, DefaultMaxCommits)
	}

	cfg.MaxCommits = 999
	if err := cfg.Save(); err != nil {
		t.Errorf("Save() failed: %v", err)
	}

	cfg2, err := Load(configPath)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if cfg2.MaxCommits != 999 {
		t.Errorf("after reload MaxCommits = %d, want 999", cfg2.MaxCommits)
	}
}

func TestLoadRequiresARepo(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "arachne.yaml")
	if err := os.WriteFile(configPath, []byte("max_commits: 10\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() should fail when neither repo_path nor repos is set")
	}
}

func TestTrunkBranchesForOverride(t *testing.T) {
	cfg := CreateDefault("")
	cfg.TrunkBranches = []string{"main"}

	repo := Repo{Path: "/tmp/x", TrunkBranches: []string{"develop", "main"}}
	got := cfg.TrunkBranchesFor(repo)
	if len(got) != 2 || got[0] != "develop" {
		t.Errorf("TrunkBranchesFor override = %v, want [develop main]", got)
	}

	plain := Repo{Path: "/tmp/y"}
	got = cfg.TrunkBranchesFor(plain)
	if len(got) != 1 || got[0] != "main" {
		t.Errorf("TrunkBranchesFor default = %v, want [main]", got)
	}
}

func TestGetShowForksDefaultsTrue(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "arachne.yaml")
	if err := os.WriteFile(configPath, []byte("repo_path: "+tmpDir+"\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.GetShowForks() {
		t.Error("GetShowForks() = false, want true when show_forks is omitted")
	}
}

func TestGetShowForksExplicitFalse(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "arachne.yaml")
	if err := os.WriteFile(configPath, []byte("repo_path: "+tmpDir+"\nshow_forks: false\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.GetShowForks() {
		t.Error("GetShowForks() = true, want false when show_forks: false is set")
	}
}

func TestGitHubTokenEnvOverride(t *testing.T) {
	t.Setenv("ARACHNE_GITHUB_TOKEN", "env-token")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "arachne.yaml")
	cfg := CreateDefault(configPath)
	cfg.RepoPath = tmpDir
	cfg.GitHubToken = "file-token"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.GitHubToken != "env-token" {
		t.Errorf("GitHubToken = %q, want env override %q", loaded.GitHubToken, "env-token")
	}
}
