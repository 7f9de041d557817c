package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"DailyBriefing/internal/config"
	"DailyBriefing/internal/domain"
)

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"run", "schedule", "send", "migrate", "seed"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q not registered: %v", name, err)
		}
	}

	run, _, _ := root.Find([]string{"run"})
	for _, flag := range []string{"user", "dry-run"} {
		if run.Flags().Lookup(flag) == nil {
			t.Fatalf("run is missing --%s", flag)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatal("root is missing --config")
	}
}

func TestMissingConfigFileFails(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "--config", filepath.Join(t.TempDir(), "absent.yaml")})
	root.SetOut(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestMigrateAndSeedCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "settings.yaml")
	body := "database:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "briefing.db") + "\n" +
		"users:\n  - name: Maria\n    sources:\n      - name: G1\n        url: https://g1.example/rss\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DATABASE_DRIVER", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"migrate", "--config", cfgPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("migrate returned error: %v", err)
	}

	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"seed", "--config", cfgPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("seed returned error: %v", err)
	}

	if !strings.Contains(out.String(), "schema ready") || !strings.Contains(out.String(), "1 users imported") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestSendRequiresCredentials(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(cfgPath, []byte("users: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"SENDER_EMAIL", "EMAIL_PASSWORD", "KINDLE_EMAIL"} {
		t.Setenv(name, "")
	}

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"send", "--config", cfgPath})

	err := root.Execute()
	var missing *config.MissingError
	if !errors.As(err, &missing) || len(missing.Names) != 3 {
		t.Fatalf("expected MissingError naming 3 values, got %v", err)
	}
}

func TestPrintReports(t *testing.T) {
	var buf bytes.Buffer
	printReports(&buf, []domain.RunReport{
		{User: domain.User{Name: "Maria"}, Stage: domain.StageDone, Articles: 2, Candidates: 9, Delivered: true, Recorded: 2, Documents: []string{"out/Jornal_2024-05-17_Maria.pdf"}},
		{User: domain.User{Name: "Pedro"}, Stage: domain.StageFailed, FailedAt: domain.StageRendering, Err: errors.New("disk full")},
	})

	got := buf.String()
	if !strings.Contains(got, "Jornal_2024-05-17_Maria.pdf") || !strings.Contains(got, "failed at rendering: disk full") {
		t.Fatalf("unexpected report output:\n%s", got)
	}
}
