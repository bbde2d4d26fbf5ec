package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "ORDERWATCH_CONFIG"
	wpEmailEnv       = "WP_EMAIL"
	wpPasswordEnv    = "WP_PASSWORD"
	telegramTokenEnv = "TELEGRAM_TOKEN"
	chatIDEnv        = "CHAT_ID"
	checkIntervalEnv = "CHECK_INTERVAL"
	portEnv          = "PORT"
)

// Config holds high-level settings required across the application.
type Config struct {
	Source        SourceConfig       `yaml:"source"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Scan          ScanConfig         `yaml:"scan"`
	Notifications NotificationConfig `yaml:"notifications"`
	Health        HealthConfig       `yaml:"health"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// SourceConfig describes the remote order system and how to reach it.
type SourceConfig struct {
	LoginURL    string `yaml:"loginUrl"`
	OrdersURL   string `yaml:"ordersUrl"`
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	StatusLabel string `yaml:"statusLabel"`
	// ShowBrowser disables headless mode for local debugging.
	ShowBrowser       bool `yaml:"showBrowser"`
	LoginWaitSeconds  int  `yaml:"loginWaitSeconds"`
	NavTimeoutSeconds int  `yaml:"navTimeoutSeconds"`
	ActTimeoutSeconds int  `yaml:"actTimeoutSeconds"`
}

// LoginWait is how long to let the post-login redirect settle.
func (s SourceConfig) LoginWait() time.Duration {
	return time.Duration(s.LoginWaitSeconds) * time.Second
}

// NavTimeout bounds every page navigation.
func (s SourceConfig) NavTimeout() time.Duration {
	return time.Duration(s.NavTimeoutSeconds) * time.Second
}

// ActTimeout bounds element lookup and interaction.
func (s SourceConfig) ActTimeout() time.Duration {
	return time.Duration(s.ActTimeoutSeconds) * time.Second
}

// ClassifierConfig carries the completion precondition markers. The wording
// belongs to the remote system and has shifted between locales before, so it
// is configuration, not code.
type ClassifierConfig struct {
	Markers []string `yaml:"markers"`
}

// ScanConfig defines the polling cadence and per-cycle fan-out.
type ScanConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
	Parallelism     int `yaml:"parallelism"`
}

// Interval resolves the scan interval as a duration.
func (s ScanConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	// Verbose restores per-cycle summary messages (idle notices, advanced
	// order lists). Off by default: silence is the steady state.
	Verbose bool `yaml:"verbose"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// HealthConfig describes the liveness endpoint.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports missing required settings. Credentials are a startup
// precondition; running without them would only fail later and quieter.
func (c Config) Validate() error {
	var missing []string
	if c.Source.Email == "" {
		missing = append(missing, wpEmailEnv)
	}
	if c.Source.Password == "" {
		missing = append(missing, wpPasswordEnv)
	}
	if c.Notifications.Telegram.BotToken == "" {
		missing = append(missing, telegramTokenEnv)
	}
	if c.Notifications.Telegram.ChatID == "" {
		missing = append(missing, chatIDEnv)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	usable := 0
	for _, m := range c.Classifier.Markers {
		if strings.TrimSpace(m) != "" {
			usable++
		}
	}
	if usable == 0 {
		return fmt.Errorf("classifier requires at least one non-blank marker phrase")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(wpEmailEnv); v != "" {
		c.Source.Email = v
	}

	if v := os.Getenv(wpPasswordEnv); v != "" {
		c.Source.Password = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(chatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(checkIntervalEnv); v != "" {
		if seconds, err := strconv.Atoi(v); err != nil || seconds <= 0 {
			log.Printf("config: invalid %s=%q, keeping %ds", checkIntervalEnv, v, c.Scan.IntervalSeconds)
		} else {
			c.Scan.IntervalSeconds = seconds
		}
	}

	if v := os.Getenv(portEnv); v != "" {
		if port, err := strconv.Atoi(v); err != nil || port <= 0 {
			log.Printf("config: invalid %s=%q, keeping %d", portEnv, v, c.Health.Port)
		} else {
			c.Health.Port = port
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Source.LoginURL != "" {
		base.Source.LoginURL = override.Source.LoginURL
	}
	if override.Source.OrdersURL != "" {
		base.Source.OrdersURL = override.Source.OrdersURL
	}
	if override.Source.Email != "" {
		base.Source.Email = override.Source.Email
	}
	if override.Source.Password != "" {
		base.Source.Password = override.Source.Password
	}
	if override.Source.StatusLabel != "" {
		base.Source.StatusLabel = override.Source.StatusLabel
	}
	if override.Source.ShowBrowser {
		base.Source.ShowBrowser = true
	}
	if override.Source.LoginWaitSeconds > 0 {
		base.Source.LoginWaitSeconds = override.Source.LoginWaitSeconds
	}
	if override.Source.NavTimeoutSeconds > 0 {
		base.Source.NavTimeoutSeconds = override.Source.NavTimeoutSeconds
	}
	if override.Source.ActTimeoutSeconds > 0 {
		base.Source.ActTimeoutSeconds = override.Source.ActTimeoutSeconds
	}

	if len(override.Classifier.Markers) > 0 {
		base.Classifier.Markers = override.Classifier.Markers
	}

	if override.Scan.IntervalSeconds > 0 {
		base.Scan.IntervalSeconds = override.Scan.IntervalSeconds
	}
	if override.Scan.Parallelism > 0 {
		base.Scan.Parallelism = override.Scan.Parallelism
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Verbose {
		base.Notifications.Verbose = true
	}

	if override.Health.Port > 0 {
		base.Health.Port = override.Health.Port
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Source: SourceConfig{
			LoginURL:          "https://korkortsfoton.se/wp-login.php?loggedout=true&wp_lang=sv_SE",
			OrdersURL:         "https://korkortsfoton.se/wp-admin/admin.php?page=wc-orders&status=wc-processing",
			StatusLabel:       "Behandlas",
			LoginWaitSeconds:  5,
			NavTimeoutSeconds: 60,
			ActTimeoutSeconds: 30,
		},
		Classifier: ClassifierConfig{
			Markers: []string{"ditt foto är nu redigerat"},
		},
		Scan: ScanConfig{
			IntervalSeconds: 120,
			Parallelism:     1,
		},
		Health: HealthConfig{
			Port: 10000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
