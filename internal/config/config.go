package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the relay.
type Config struct {
	General  GeneralConfig  `json:"general" yaml:"general"`
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Relay    RelayConfig    `json:"relay" yaml:"relay"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel" yaml:"logLevel"` // debug | info | warn | error
	MediaDir string `json:"mediaDir" yaml:"mediaDir"` // scratch dir for media handling
}

// UpstreamConfig holds the upstream account credentials. SessionString and
// the API fields are normally supplied through the environment (see Env).
type UpstreamConfig struct {
	APIID         int      `json:"apiId" yaml:"apiId"`
	APIHash       string   `json:"apiHash" yaml:"apiHash"`
	Phone         string   `json:"phone" yaml:"phone"`
	BotToken      string   `json:"botToken,omitempty" yaml:"botToken,omitempty"`
	ChannelID     int64    `json:"channelId" yaml:"channelId"`
	SessionString string   `json:"sessionString,omitempty" yaml:"sessionString,omitempty"`
	SessionFiles  []string `json:"sessionFiles,omitempty" yaml:"sessionFiles,omitempty"`
}

type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// RelayConfig bounds inline media embedding per delivery path.
type RelayConfig struct {
	PushInlineLimit int64 `json:"pushInlineLimitBytes" yaml:"pushInlineLimitBytes"`
	PullInlineLimit int64 `json:"pullInlineLimitBytes" yaml:"pullInlineLimitBytes"`
	MetricsEnabled  bool  `json:"metricsEnabled" yaml:"metricsEnabled"`
}

// Env is the environment overlay applied on top of the config file, so a
// deployment can run with no file at all.
type Env struct {
	APIID         int    `env:"API_ID,default=0"`
	APIHash       string `env:"API_HASH,default="`
	Phone         string `env:"MOBILE_NUM,default="`
	BotToken      string `env:"BOT_TOKEN,default="`
	ChannelID     int64  `env:"CHANNEL_ID,default=0"`
	SessionString string `env:"SESSION_STRING,default="`
}

// Load reads the config file (JSON or YAML by extension), expands ${VAR}
// references, applies the environment overlay, and validates.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("cannot resolve home directory: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		data = []byte(ExpandEnvVars(string(data)))

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment overlay: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var env Env
	if err := envdecode.Decode(&env); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return err
	}
	if env.APIID != 0 {
		cfg.Upstream.APIID = env.APIID
	}
	if env.APIHash != "" {
		cfg.Upstream.APIHash = env.APIHash
	}
	if env.Phone != "" {
		cfg.Upstream.Phone = env.Phone
	}
	if env.BotToken != "" {
		cfg.Upstream.BotToken = env.BotToken
	}
	if env.ChannelID != 0 {
		cfg.Upstream.ChannelID = env.ChannelID
	}
	if env.SessionString != "" {
		cfg.Upstream.SessionString = env.SessionString
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes the config as JSON.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has usable values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.Relay.PushInlineLimit < 0 {
		errs = append(errs, "relay.pushInlineLimitBytes must be >= 0")
	}
	if cfg.Relay.PullInlineLimit < 0 {
		errs = append(errs, "relay.pullInlineLimitBytes must be >= 0")
	}
	if cfg.Upstream.ChannelID == 0 {
		errs = append(errs, "upstream.channelId is required (or set CHANNEL_ID)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
