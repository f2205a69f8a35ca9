package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{
		"install", "uninstall", "update", "plan", "list", "check",
		"backup", "migrate", "history", "watch", "audit",
	}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestPlanCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "core"), 0o755); err != nil {
		t.Fatal(err)
	}
	def := "[component]\nname = \"core\"\nversion = \"1.0.0\"\n"
	if err := os.WriteFile(filepath.Join(dir, "core", "component.toml"), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}

	rootCmd.SetArgs([]string{"plan", "core", "--components-dir", dir})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("plan: %v", err)
	}

	rootCmd.SetArgs([]string{"plan", "ghost", "--components-dir", dir})
	if err := rootCmd.Execute(); err == nil {
		t.Error("plan of unknown component succeeded")
	}
}
