package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand_Help(t *testing.T) {
	cmd := rootCmd
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("root --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "policydeck") {
		t.Error("expected 'policydeck' in help output")
	}
	for _, sub := range []string{"now", "push", "serve", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected %q subcommand in help output", sub)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	SetBuildInfo("test-v0.0.1", "abc", "today")
	defer SetBuildInfo("dev", "none", "unknown")

	// version uses fmt.Println (stdout), so just verify the command exists and runs
	ver, _, err := rootCmd.Find([]string{"version"})
	if err != nil {
		t.Fatalf("failed to find 'version' command: %v", err)
	}
	if ver.Use != "version" {
		t.Errorf("expected Use='version', got %q", ver.Use)
	}
	if version != "test-v0.0.1" {
		t.Errorf("expected version 'test-v0.0.1', got %q", version)
	}
}

func TestRootCommand_LogFlags(t *testing.T) {
	for _, flag := range []string{"log-level", "log-format", "otel-endpoint"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag %q", flag)
		}
	}
}

func TestPushCommand_RequiredFlags(t *testing.T) {
	push, _, err := rootCmd.Find([]string{"push"})
	if err != nil {
		t.Fatalf("failed to find 'push' command: %v", err)
	}
	for _, flag := range []string{"endpoint", "app-name", "protocol", "port", "action", "cert", "key", "ca", "insecure", "spiffe-socket", "socks5"} {
		if push.Flags().Lookup(flag) == nil {
			t.Errorf("expected push flag %q", flag)
		}
	}
}

func TestServeCommand_Flags(t *testing.T) {
	serve, _, err := rootCmd.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("failed to find 'serve' command: %v", err)
	}
	for _, flag := range []string{"config", "url", "listen", "history-db"} {
		if serve.Flags().Lookup(flag) == nil {
			t.Errorf("expected serve flag %q", flag)
		}
	}
}
