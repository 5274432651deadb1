package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "sigmos" {
		t.Errorf("expected Use to be 'sigmos', got %s", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if cmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	// Check subcommands are registered
	expectedCommands := []string{
		"version",
		"validate",
		"run",
		"transpile",
		"describe",
		"init",
		"plugin",
		"history",
		"lsp",
		"serve",
		"completion",
	}

	for _, expected := range expectedCommands {
		found := false
		for _, cmd := range cmd.Commands() {
			if cmd.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %s to be registered", expected)
		}
	}

	for _, flag := range []string{"config", "no-color", "verbose"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected --%s flag to be registered", flag)
		}
	}
}

func TestNewVersionCommand(t *testing.T) {
	// Set test version info
	Version = "1.0.0-test"
	GitCommit = "abc123"
	BuildDate = "2025-01-01"
	GoVersion = "go1.23"

	cmd := NewVersionCommand()

	if cmd.Use != "version" {
		t.Errorf("expected Use to be 'version', got %s", cmd.Use)
	}

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, []string{})

	for _, want := range []string{"SIGMOS version:", "1.0.0-test", "abc123", "2025-01-01", "go1.23"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected version output to contain %q, got:\n%s", want, out.String())
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if !strings.Contains(stdout, "sigmos") {
		t.Error("expected bash completion script to mention sigmos")
	}

	if _, _, err := executeCommand(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}
