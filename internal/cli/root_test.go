package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootHasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := map[string]bool{
		"serve":   false,
		"start":   false,
		"status":  false,
		"stop":    false,
		"clear":   false,
		"version": false,
	}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Fatal("version output is empty")
	}
}

func TestParseEnvVars(t *testing.T) {
	env, err := parseEnvVars([]string{"A=1", "B=x=y"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env["A"] != "1" || env["B"] != "x=y" {
		t.Fatalf("env = %v", env)
	}

	if _, err := parseEnvVars([]string{"NOEQUALS"}); err == nil {
		t.Fatal("expected error for pair without '='")
	}
	if _, err := parseEnvVars([]string{"=value"}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestStartRequiresCommand(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"start"})

	if err := root.Execute(); err == nil {
		t.Fatal("start without a command should fail")
	}
}
