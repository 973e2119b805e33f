// ABOUTME: Loads CLI configuration from YAML, .env and environment variables
// ABOUTME: Applies struct-tag defaults and validates before returning

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName names the config directory and the binary
const AppName = "filemgr"

// Config holds every setting the CLI and TUI read
type Config struct {
	APIURL      string        `yaml:"api_url" default:"http://localhost:8000" validate:"required,url"`
	Timeout     time.Duration `yaml:"timeout" default:"30s" validate:"min=1s"`
	DownloadDir string        `yaml:"download_dir" default:"."`
	Auth        AuthConfig    `yaml:"auth"`
	Log         LogConfig     `yaml:"log"`
}

// AuthConfig describes the identity provider's token endpoint
type AuthConfig struct {
	TokenURL     string        `yaml:"token_url" validate:"omitempty,url"`
	ClientID     string        `yaml:"client_id" default:"filemgr"`
	ClientSecret string        `yaml:"client_secret"`
	Scopes       []string      `yaml:"scopes" default:"[\"openid\",\"offline_access\"]"`
	RefreshSkew  time.Duration `yaml:"refresh_skew" default:"1m"`
}

// LogConfig selects slog level and handler
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

// DefaultDir returns the config directory under XDG_CONFIG_HOME or ~/.config
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultPath returns config.yaml inside DefaultDir
func DefaultPath() string {
	dir := DefaultDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads path (or the default location when path is empty), then applies
// .env, environment overrides and defaults. A missing default file is fine; a
// missing explicit file is an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && !explicit:
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with FILEMGR_* and LOG_* variables
func applyEnv(cfg *Config) {
	setFromEnv(&cfg.APIURL, "FILEMGR_API_URL")
	setFromEnv(&cfg.DownloadDir, "FILEMGR_DOWNLOAD_DIR")
	setFromEnv(&cfg.Auth.TokenURL, "FILEMGR_TOKEN_URL")
	setFromEnv(&cfg.Auth.ClientID, "FILEMGR_CLIENT_ID")
	setFromEnv(&cfg.Auth.ClientSecret, "FILEMGR_CLIENT_SECRET")
	setFromEnv(&cfg.Log.Level, "LOG_LEVEL")
	setFromEnv(&cfg.Log.Format, "LOG_FORMAT")
	if v := os.Getenv("FILEMGR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("FILEMGR_SCOPES"); v != "" {
		cfg.Auth.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}

	// slog level and handler names are matched case-insensitively
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks struct-tag constraints and reports every failing field
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	failed := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		tag := fe.Tag()
		if fe.Param() != "" {
			tag += "=" + fe.Param()
		}
		failed = append(failed, fmt.Sprintf("%s: %s", fe.Namespace(), tag))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(failed, ", "))
}
