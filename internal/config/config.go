// Package config loads server settings from an optional YAML file, an
// optional .env file and GESTTEAM_* environment variables, in increasing
// order of precedence.
//
//	server.port        → GESTTEAM_SERVER_PORT
//	auth.session_ttl   → GESTTEAM_AUTH_SESSION_TTL
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "GESTTEAM"

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Institution InstitutionConfig `mapstructure:"institution"`
	GitHub      GitHubConfig      `mapstructure:"github"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	FrontendURL string `mapstructure:"frontend_url"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
}

// InstitutionConfig describes the university accounts are bound to.
type InstitutionConfig struct {
	Domain          string `mapstructure:"domain"`
	RequireVerified bool   `mapstructure:"require_verified"`
	// EmailPrefix is prepended to the national id when generating teacher emails.
	EmailPrefix string `mapstructure:"email_prefix"`
}

type GitHubConfig struct {
	ClientID          string `mapstructure:"client_id"`
	ClientSecret      string `mapstructure:"client_secret"`
	CallbackURL       string `mapstructure:"callback_url"`
	APIURL            string `mapstructure:"api_url"`
	AppID             int64  `mapstructure:"app_id"`
	AppPrivateKey     string `mapstructure:"app_private_key"`
	AppPrivateKeyPath string `mapstructure:"app_private_key_path"`
	AppInstallURL     string `mapstructure:"app_install_url"`
}

// AppConfigured reports whether GitHub App credentials were supplied.
func (g GitHubConfig) AppConfigured() bool {
	return g.AppID != 0 && (g.AppPrivateKey != "" || g.AppPrivateKeyPath != "")
}

type CacheConfig struct {
	RoleTTL time.Duration `mapstructure:"role_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.frontend_url", "http://localhost:5173")
	v.SetDefault("database.path", "data/gestteam.db")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("institution.domain", "unifranz.edu.bo")
	v.SetDefault("institution.require_verified", true)
	v.SetDefault("institution.email_prefix", "cbbe")
	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.callback_url", "")
	v.SetDefault("github.api_url", "https://api.github.com/")
	v.SetDefault("github.app_id", 0)
	v.SetDefault("github.app_private_key", "")
	v.SetDefault("github.app_private_key_path", "")
	v.SetDefault("github.app_install_url", "")
	v.SetDefault("cache.role_ttl", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration. An empty configPath skips the YAML file; a
// missing .env in the working directory is ignored.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Server.FrontendURL = strings.TrimRight(c.Server.FrontendURL, "/")
	c.Institution.Domain = strings.ToLower(strings.TrimSpace(c.Institution.Domain))
	if c.GitHub.CallbackURL == "" {
		c.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Server.Port)
	}
	if c.GitHub.APIURL != "" && !strings.HasSuffix(c.GitHub.APIURL, "/") {
		c.GitHub.APIURL += "/"
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d is not a valid port", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if len(c.Auth.SessionSecret) < 16 {
		errs = append(errs, errors.New("auth.session_secret must be at least 16 characters"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.Institution.Domain == "" {
		errs = append(errs, errors.New("institution.domain is required"))
	}
	if c.Cache.RoleTTL <= 0 {
		errs = append(errs, errors.New("cache.role_ttl must be positive"))
	}
	if c.GitHub.AppID < 0 {
		errs = append(errs, errors.New("github.app_id must not be negative"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
