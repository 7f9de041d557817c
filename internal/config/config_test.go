package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleConfig = `
llm:
  provider: gemini
preferences:
  rssScanLimit: 3
  maxArticles: 2
  includeImages: true
  formats: [PDF, epub]
users:
  - id: 1
    name: Maria Clara Souza
    topics: [tecnologia, economia]
    sources:
      - name: G1 Tecnologia
        url: https://g1.globo.com/rss/g1/tecnologia/
      - name: Off
        url: https://example.org/feed
        active: false
  - id: 2
    name: Pedro
    kindleEmail: pedro@kindle.com
    active: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		configPathEnv, logLevelEnv, databaseDriverEnv, databaseDSNEnv, llmProviderEnv, llmModelEnv,
		geminiAPIKeyEnv, openAIAPIKeyEnv, smtpServerEnv, smtpPortEnv, senderEmailEnv,
		emailPasswordEnv, kindleEmailEnv, telegramTokenEnv, telegramChatIDEnv, pushgatewayEnv,
	} {
		t.Setenv(name, "")
	}
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Preferences.RSSScanLimit != 3 || cfg.Preferences.MaxArticles != 2 {
		t.Fatalf("limits not read independently: %+v", cfg.Preferences)
	}
	if cfg.Preferences.BodyCharLimit != 8000 {
		t.Fatalf("expected default body limit, got %d", cfg.Preferences.BodyCharLimit)
	}
	if diff := cmp.Diff([]string{"pdf", "epub"}, cfg.Preferences.Formats); diff != "" {
		t.Fatalf("formats mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Preferences.TableOfContents || !cfg.Preferences.CandidateAppendix {
		t.Fatalf("expected document sections enabled by default")
	}
	if cfg.LLM.Model != "gemini-1.5-flash" {
		t.Fatalf("unexpected default model %q", cfg.LLM.Model)
	}
	if cfg.SMTP.Host != "smtp.gmail.com" || cfg.SMTP.Port != 587 {
		t.Fatalf("unexpected smtp defaults: %+v", cfg.SMTP)
	}
	if cfg.Scheduler.Location() == nil {
		t.Fatalf("expected scheduler location")
	}
	if !cfg.MultiUser() {
		t.Fatalf("two declared users should enable multi-user naming")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(llmProviderEnv, "OpenAI")
	t.Setenv(openAIAPIKeyEnv, "sk-test")
	t.Setenv(geminiAPIKeyEnv, "ignored")
	t.Setenv(smtpServerEnv, "mail.example.org")
	t.Setenv(smtpPortEnv, "2525")
	t.Setenv(senderEmailEnv, "sender@example.org")
	t.Setenv(emailPasswordEnv, "app-password")
	t.Setenv(kindleEmailEnv, "reader@kindle.com")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.LLM.Provider != ProviderOpenAI || cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("provider override must pick the provider's default model, got %q", cfg.LLM.Model)
	}
	if cfg.SMTP.Host != "mail.example.org" || cfg.SMTP.Port != 2525 {
		t.Fatalf("unexpected smtp config: %+v", cfg.SMTP)
	}
	if cfg.SMTP.From != "sender@example.org" {
		t.Fatalf("from should default to the sender, got %q", cfg.SMTP.From)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing config file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestValidateNamesEveryMissingValue(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	err = cfg.Validate()
	var missing *MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingError, got %v", err)
	}

	want := []string{geminiAPIKeyEnv, senderEmailEnv, emailPasswordEnv, kindleEmailEnv}
	if diff := cmp.Diff(want, missing.Names); diff != "" {
		t.Fatalf("missing names mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateSkipsMailSecretsWhenDeliveryDisabled(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig + "delivery:\n  enabled: false\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	cfg.LLM.APIKey = "key"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("preferencs:\n  maxArticles: 3\n")); err == nil {
		t.Fatal("expected error for misspelled section")
	}
}

func TestParseEmptyDocumentUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.Preferences.RSSScanLimit != 15 || cfg.Preferences.MaxArticles != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg.Preferences)
	}
	if cfg.SMTP.Timeout != 30*time.Second {
		t.Fatalf("unexpected smtp timeout %v", cfg.SMTP.Timeout)
	}
}

func TestFileUsers(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	cfg.Delivery.To = "fallback@kindle.com"

	users := cfg.FileUsers()
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	maria := users[0]
	if maria.ID != 1 || !maria.Active || maria.KindleEmail != "fallback@kindle.com" {
		t.Fatalf("unexpected first user: %+v", maria)
	}
	if maria.FirstName() != "Maria" {
		t.Fatalf("unexpected first name %q", maria.FirstName())
	}
	active := maria.ActiveSources()
	if len(active) != 1 || active[0].Name != "G1 Tecnologia" || active[0].UserID != 1 {
		t.Fatalf("unexpected active sources: %+v", active)
	}

	pedro := users[1]
	if pedro.ID != 2 || pedro.Active || pedro.KindleEmail != "pedro@kindle.com" {
		t.Fatalf("unexpected second user: %+v", pedro)
	}
}

func TestLoadKeepsExplicitModelOverProviderDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv(llmProviderEnv, "openai")
	t.Setenv(llmModelEnv, "gpt-4.1")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Model != "gpt-4.1" {
		t.Fatalf("expected explicit model, got %q", cfg.LLM.Model)
	}
}

func TestValidateFileUserIDs(t *testing.T) {
	cases := []struct {
		name  string
		users string
		want  string
	}{
		{
			name:  "missing id",
			users: "users:\n  - name: Ana\n    kindleEmail: ana@kindle.com\n",
			want:  "id must be a positive number",
		},
		{
			name:  "duplicate id",
			users: "users:\n  - id: 3\n    name: Ana\n    kindleEmail: ana@kindle.com\n  - id: 3\n    name: Bruno\n    kindleEmail: bruno@kindle.com\n",
			want:  "already used by",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse([]byte("delivery:\n  enabled: false\n" + tc.users))
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			cfg.LLM.APIKey = "key"

			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestFileUserIDsStableAcrossRemoval(t *testing.T) {
	before, err := Parse([]byte("users:\n  - id: 1\n    name: Ana\n  - id: 2\n    name: Bruno\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	after, err := Parse([]byte("users:\n  - id: 2\n    name: Bruno\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if got, want := after.FileUsers()[0].ID, before.FileUsers()[1].ID; got != want {
		t.Fatalf("Bruno id changed from %d to %d after removing Ana", want, got)
	}
}

func TestValidateRejectsUnknownRegistry(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig + "registry: databse\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	cfg.LLM.APIKey = "key"
	cfg.Delivery.Enabled = false

	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "databse") {
		t.Fatalf("expected unknown registry error, got %v", err)
	}
}
