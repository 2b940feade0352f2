package main

import (
	"strings"
	"testing"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "status"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestOrDefaultHelpers(t *testing.T) {
	if got := orDefault("", "fallback"); got != "fallback" {
		t.Fatalf("orDefault empty = %q, want fallback", got)
	}
	if got := orDefault("set", "fallback"); got != "set" {
		t.Fatalf("orDefault non-empty = %q, want set", got)
	}
	if got := orDefaultInt(0, 7); got != 7 {
		t.Fatalf("orDefaultInt zero = %d, want 7", got)
	}
	if got := orDefaultInt(3, 7); got != 3 {
		t.Fatalf("orDefaultInt non-zero = %d, want 3", got)
	}
}

func TestRedactSecretsStripsAPIKeys(t *testing.T) {
	got := redactSecrets(`found api_key: "sk-ant-` + strings.Repeat("a", 100) + `" in .env`)
	if strings.Contains(got, "sk-ant-") {
		t.Fatalf("expected Anthropic API key to be redacted, got %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Fatalf("expected [REDACTED] marker, got %q", got)
	}
}

func TestRedactSecretsLeavesPlainTextAlone(t *testing.T) {
	plain := "created add.py with a two-line function"
	if got := redactSecrets(plain); got != plain {
		t.Fatalf("expected plain text unchanged, got %q", got)
	}
}
