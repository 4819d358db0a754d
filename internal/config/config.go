package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config is the resolved platesolve configuration.
type Config struct {
	APIKey       string
	BaseURL      string
	CacheDir     string // empty selects the user cache dir
	LogFile      string
	LogLevel     string
	PollInterval time.Duration
	Theme        string
	Watch        WatchConfig
	Notify       NotifyConfig
}

// WatchConfig drives the watch command.
type WatchConfig struct {
	Dir      string
	Schedule string
}

// NotifyConfig lists the notification sinks. Empty values disable a sink.
type NotifyConfig struct {
	SlackWebhook   string
	DiscordWebhook string
	Email          EmailConfig
}

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	SMTPHost string
	Port     int
	From     string
	To       []string
	Password string
}

// Enabled reports whether enough is set to send mail.
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.From != "" && len(e.To) > 0
}

// Environment variables that override the file.
const (
	EnvAPIKey      = "ASTROMETRY_API_KEY"
	EnvBaseURL     = "ASTROMETRY_BASE_URL"
	EnvCacheDir    = "PLATESOLVE_CACHE_DIR"
	EnvPollSeconds = "PLATESOLVE_POLL_SECONDS"
)

const (
	defaultConfigPath = "~/.config/platesolve/config.toml"
	defaultLogFile    = "~/.local/share/platesolve/platesolve.log"
	defaultBaseURL    = "https://nova.astrometry.net/"
	defaultLogLevel   = "info"
	defaultTheme      = "Dracula"
	defaultSchedule   = "@every 5m"
	defaultSMTPPort   = 465

	defaultPollSeconds = 3
	minPollSeconds     = 2
	maxPollSeconds     = 5
)

// ErrMissingAPIKey is returned by Validate when no API key is configured.
var ErrMissingAPIKey = errors.New("astrometry api key is not set (api_key or " + EnvAPIKey + ")")

type rawConfig struct {
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	CacheDir    string `toml:"cache_dir"`
	LogFile     string `toml:"log_file"`
	LogLevel    string `toml:"log_level"`
	PollSeconds int    `toml:"poll_seconds"`
	Theme       string `toml:"theme"`
	Watch       struct {
		Dir      string `toml:"dir"`
		Schedule string `toml:"schedule"`
	} `toml:"watch"`
	Notify struct {
		SlackWebhook   string `toml:"slack_webhook"`
		DiscordWebhook string `toml:"discord_webhook"`
		Email          struct {
			SMTPHost string   `toml:"smtp_host"`
			Port     int      `toml:"port"`
			From     string   `toml:"from"`
			To       []string `toml:"to"`
			Password string   `toml:"password"`
		} `toml:"email"`
	} `toml:"notify"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

// Load reads the TOML file at path (the default location when empty),
// applies .env files and then the environment. A missing config or env file
// is not an error. envFiles defaults to ".env" in the working directory.
func Load(path string, envFiles ...string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw rawConfig
	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}

	cfg := fromRaw(raw)
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields a solve needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func fromRaw(raw rawConfig) Config {
	cfg := Config{
		APIKey:       strings.TrimSpace(raw.APIKey),
		BaseURL:      strings.TrimSpace(raw.BaseURL),
		CacheDir:     strings.TrimSpace(raw.CacheDir),
		LogFile:      strings.TrimSpace(raw.LogFile),
		LogLevel:     strings.TrimSpace(raw.LogLevel),
		PollInterval: pollInterval(raw.PollSeconds),
		Theme:        strings.TrimSpace(raw.Theme),
		Watch: WatchConfig{
			Dir:      strings.TrimSpace(raw.Watch.Dir),
			Schedule: strings.TrimSpace(raw.Watch.Schedule),
		},
		Notify: NotifyConfig{
			SlackWebhook:   strings.TrimSpace(raw.Notify.SlackWebhook),
			DiscordWebhook: strings.TrimSpace(raw.Notify.DiscordWebhook),
			Email: EmailConfig{
				SMTPHost: strings.TrimSpace(raw.Notify.Email.SMTPHost),
				Port:     raw.Notify.Email.Port,
				From:     strings.TrimSpace(raw.Notify.Email.From),
				Password: raw.Notify.Email.Password,
			},
		},
	}
	for _, to := range raw.Notify.Email.To {
		if to = strings.TrimSpace(to); to != "" {
			cfg.Notify.Email.To = append(cfg.Notify.Email.To, to)
		}
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.LogFile == "" {
		cfg.LogFile = defaultLogFile
	}
	cfg.LogFile = mustExpand(cfg.LogFile)
	if cfg.CacheDir != "" {
		cfg.CacheDir = mustExpand(cfg.CacheDir)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.Theme == "" {
		cfg.Theme = defaultTheme
	}
	if cfg.Watch.Dir != "" {
		cfg.Watch.Dir = mustExpand(cfg.Watch.Dir)
	}
	if cfg.Watch.Schedule == "" {
		cfg.Watch.Schedule = defaultSchedule
	}
	if cfg.Notify.Email.Port == 0 {
		cfg.Notify.Email.Port = defaultSMTPPort
	}
	return cfg
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat env file: %w", err)
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheDir)); v != "" {
		cfg.CacheDir = mustExpand(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPollSeconds)); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvPollSeconds, err)
		}
		cfg.PollInterval = pollInterval(seconds)
	}
	return nil
}

// pollInterval clamps seconds to the supported cadence; zero selects the default.
func pollInterval(seconds int) time.Duration {
	switch {
	case seconds == 0:
		seconds = defaultPollSeconds
	case seconds < minPollSeconds:
		seconds = minPollSeconds
	case seconds > maxPollSeconds:
		seconds = maxPollSeconds
	}
	return time.Duration(seconds) * time.Second
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
