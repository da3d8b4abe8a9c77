package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogsCommandFiltersAndFormats(t *testing.T) {
	env := setupCLITestEnv(t)
	content := strings.Join([]string{
		`{"ts":"2026-03-01T10:00:00Z","level":"info","msg":"run started","component":"pipeline","run_id":"aaaa1111-x"}`,
		`{"ts":"2026-03-01T10:00:05Z","level":"warn","msg":"chunk rejected","component":"pipeline","run_id":"aaaa1111-x","chunk_index":2}`,
		`{"ts":"2026-03-01T11:00:00Z","level":"info","msg":"run started","component":"pipeline","run_id":"bbbb2222-y"}`,
	}, "\n") + "\n"
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.cfg.LogFilePath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, env.configPath, "logs", "--run", "aaaa")
	if err != nil {
		t.Fatalf("logs --run: %v", err)
	}
	requireContains(t, out, "INFO  [pipeline] run started", "WARN  [pipeline] chunk rejected chunk_index=2")
	if strings.Contains(out, "bbbb2222") {
		t.Fatalf("unexpected entry from another run:\n%s", out)
	}

	out, err = runCLI(t, env.configPath, "logs", "--level", "warn", "--raw")
	if err != nil {
		t.Fatalf("logs --level: %v", err)
	}
	if strings.Count(strings.TrimSpace(out), "\n") != 0 || !strings.Contains(out, `"msg":"chunk rejected"`) {
		t.Fatalf("expected a single raw warn line, got:\n%s", out)
	}
}

func TestLogsCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env.configPath, "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No matching log entries")
}

func TestLogsCommandFollowStopsOnCancel(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := env.cfg.LogFilePath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte("first\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()
	cmd := newRootCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--config", env.configPath, "logs", "--follow"})

	go func() {
		time.Sleep(200 * time.Millisecond)
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		_, _ = f.WriteString("followed\n")
		_ = f.Close()
	}()

	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("logs --follow: %v", err)
	}
	requireContains(t, stdout.String(), "first", "followed")
}
