package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"DailyBriefing/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	defaultConfigPath = "config/settings.yaml"

	configPathEnv     = "BRIEFING_CONFIG"
	logLevelEnv       = "LOG_LEVEL"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	llmProviderEnv    = "LLM_PROVIDER"
	llmModelEnv       = "LLM_MODEL"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	smtpServerEnv     = "SMTP_SERVER"
	smtpPortEnv       = "SMTP_PORT"
	senderEmailEnv    = "SENDER_EMAIL"
	emailPasswordEnv  = "EMAIL_PASSWORD"
	kindleEmailEnv    = "KINDLE_EMAIL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	pushgatewayEnv    = "PUSHGATEWAY_URL"
)

// Supported generation backends.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Supported user registries.
const (
	RegistryFile     = "file"
	RegistryDatabase = "database"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	LLM           LLMConfig          `yaml:"llm"`
	Preferences   PreferencesConfig  `yaml:"preferences"`
	Paths         PathsConfig        `yaml:"paths"`
	SMTP          SMTPConfig         `yaml:"smtp"`
	Delivery      DeliveryConfig     `yaml:"delivery"`
	Notifications NotificationConfig `yaml:"notifications"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Registry      string             `yaml:"registry"`
	Users         []UserConfig       `yaml:"users"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the relational store holding users and history.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when the batch should run in schedule mode.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LLMConfig defines how to contact the generation service.
type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	Endpoint     string        `yaml:"endpoint"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PreferencesConfig tunes how many articles are scanned, selected and how
// the edition looks.
type PreferencesConfig struct {
	RSSScanLimit      int      `yaml:"rssScanLimit"`
	MaxArticles       int      `yaml:"maxArticles"`
	BodyCharLimit     int      `yaml:"bodyCharLimit"`
	IncludeImages     bool     `yaml:"includeImages"`
	Formats           []string `yaml:"formats"`
	TableOfContents   bool     `yaml:"tableOfContents"`
	CandidateAppendix bool     `yaml:"candidateAppendix"`
}

// PathsConfig points to the local directories the pipeline writes to and
// to the optional TrueType font embedded in PDF editions.
type PathsConfig struct {
	Output string `yaml:"output"`
	Images string `yaml:"images"`
	Font   string `yaml:"font"`
}

// SMTPConfig holds the sender credentials.
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DeliveryConfig toggles email delivery and sets the fallback destination.
type DeliveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	To      string `yaml:"to"`
	Subject string `yaml:"subject"`
}

// NotificationConfig encapsulates outbound operator channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// MetricsConfig points to an optional Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgatewayUrl"`
	Job            string `yaml:"job"`
}

// UserConfig declares a subscriber in the config file registry.
type UserConfig struct {
	ID          int64          `yaml:"id"`
	Name        string         `yaml:"name"`
	Email       string         `yaml:"email"`
	KindleEmail string         `yaml:"kindleEmail"`
	Active      *bool          `yaml:"active"`
	Topics      []string       `yaml:"topics"`
	Sources     []SourceConfig `yaml:"sources"`
}

// SourceConfig declares one feed of a user.
type SourceConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Active *bool  `yaml:"active"`
}

// MissingError names every required setting that is absent.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Names, ", ")
}

// Load reads .env, the YAML configuration and environment overrides. An
// empty path falls back to BRIEFING_CONFIG and then to config/settings.yaml.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path == "" {
		path = defaultConfigPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := decode(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.finalize()

	return cfg, nil
}

// Parse decodes YAML on top of the defaults without consulting the
// environment.
func Parse(raw []byte) (Config, error) {
	cfg, err := decode(raw)
	if err != nil {
		return Config{}, err
	}
	cfg.finalize()
	return cfg, nil
}

func decode(raw []byte) (Config, error) {
	cfg := defaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

// Validate reports every required value that is still missing.
func (c Config) Validate() error {
	var missing []string

	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case ProviderOpenAI:
			missing = append(missing, openAIAPIKeyEnv)
		default:
			missing = append(missing, geminiAPIKeyEnv)
		}
	}

	if c.Delivery.Enabled {
		if c.SMTP.Username == "" {
			missing = append(missing, senderEmailEnv)
		}
		if c.SMTP.Password == "" {
			missing = append(missing, emailPasswordEnv)
		}
		if c.Registry == RegistryFile && c.Delivery.To == "" {
			for _, u := range c.Users {
				if u.KindleEmail == "" {
					missing = append(missing, kindleEmailEnv)
					break
				}
			}
		}
	}

	switch c.Registry {
	case RegistryFile:
		if len(c.Users) == 0 {
			missing = append(missing, "users")
		}
	case RegistryDatabase:
		if c.Database.DSN == "" {
			missing = append(missing, databaseDSNEnv)
		}
	default:
		return fmt.Errorf("unknown registry %q: want %q or %q", c.Registry, RegistryFile, RegistryDatabase)
	}

	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}
	if c.Registry == RegistryFile {
		return c.validateUserIDs()
	}
	return nil
}

// validateUserIDs requires an explicit, unique id per declared user since
// delivery history is keyed by it.
func (c Config) validateUserIDs() error {
	seen := make(map[int64]string, len(c.Users))
	for i, u := range c.Users {
		if u.ID <= 0 {
			return fmt.Errorf("users[%d] %q: id must be a positive number", i, u.Name)
		}
		if other, ok := seen[u.ID]; ok {
			return fmt.Errorf("users[%d] %q: id %d already used by %q", i, u.Name, u.ID, other)
		}
		seen[u.ID] = u.Name
	}
	return nil
}

// FileUsers converts the users declared in the file into domain users.
// Users without a delivery address inherit the configured destination.
// Validate rejects missing ids for the file registry; the positional
// fallback only serves seeding, where the database assigns its own ids.
func (c Config) FileUsers() []domain.User {
	users := make([]domain.User, 0, len(c.Users))
	for i, uc := range c.Users {
		id := uc.ID
		if id == 0 {
			id = int64(i + 1)
		}
		u := domain.User{
			ID:          id,
			Name:        uc.Name,
			Email:       uc.Email,
			KindleEmail: uc.KindleEmail,
			Active:      boolOr(uc.Active, true),
			Topics:      append([]string(nil), uc.Topics...),
		}
		if u.KindleEmail == "" {
			u.KindleEmail = c.Delivery.To
		}
		for j, sc := range uc.Sources {
			u.Sources = append(u.Sources, domain.Source{
				ID:     int64(j + 1),
				UserID: id,
				Name:   sc.Name,
				URL:    sc.URL,
				Active: boolOr(sc.Active, true),
			})
		}
		users = append(users, u)
	}
	return users
}

// MultiUser reports whether documents must carry the user's name.
func (c Config) MultiUser() bool {
	return c.Registry == RegistryDatabase || len(c.Users) > 1
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if v := os.Getenv(openAIAPIKeyEnv); v != "" {
			c.LLM.APIKey = v
		}
	default:
		if v := os.Getenv(geminiAPIKeyEnv); v != "" {
			c.LLM.APIKey = v
		}
	}

	if v := os.Getenv(smtpServerEnv); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		} else {
			log.Printf("config: invalid %s %q, keeping %d", smtpPortEnv, v, c.SMTP.Port)
		}
	}
	if v := os.Getenv(senderEmailEnv); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv(emailPasswordEnv); v != "" {
		c.SMTP.Password = v
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}
	if v := os.Getenv(kindleEmailEnv); v != "" {
		c.Delivery.To = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(pushgatewayEnv); v != "" {
		c.Metrics.PushgatewayURL = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func (c *Config) normalize() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Registry = strings.ToLower(strings.TrimSpace(c.Registry))
	if c.Registry == "" {
		c.Registry = RegistryFile
	}
	if c.Preferences.RSSScanLimit <= 0 {
		c.Preferences.RSSScanLimit = defaultConfig().Preferences.RSSScanLimit
	}
	if c.Preferences.MaxArticles <= 0 {
		c.Preferences.MaxArticles = defaultConfig().Preferences.MaxArticles
	}
	if c.Preferences.BodyCharLimit <= 0 {
		c.Preferences.BodyCharLimit = defaultConfig().Preferences.BodyCharLimit
	}
	if len(c.Preferences.Formats) == 0 {
		c.Preferences.Formats = []string{"pdf"}
	}
	for i, f := range c.Preferences.Formats {
		c.Preferences.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
}

// finalize resolves defaults that depend on values the environment may
// override.
func (c *Config) finalize() {
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case ProviderOpenAI:
			c.LLM.Model = "gpt-4o-mini"
		default:
			c.LLM.Model = "gemini-1.5-flash"
		}
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "data/briefing.db"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		LLM: LLMConfig{
			Provider: ProviderGemini,
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Timeout:  60 * time.Second,
		},
		Preferences: PreferencesConfig{
			RSSScanLimit:      15,
			MaxArticles:       5,
			BodyCharLimit:     8000,
			Formats:           []string{"pdf"},
			TableOfContents:   true,
			CandidateAppendix: true,
		},
		Paths: PathsConfig{Output: "data/output", Images: "data/images"},
		SMTP: SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			Timeout: 30 * time.Second,
		},
		Delivery: DeliveryConfig{Enabled: true},
		Metrics:  MetricsConfig{Job: "dailybriefing"},
		Registry: RegistryFile,
	}
}
