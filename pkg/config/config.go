package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	Bootstrap BootstrapConfig `koanf:"bootstrap"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"ssl_mode"`
	MaxConns int    `koanf:"max_conns"`
}

// DSN renders the postgres connection string for pgx and database/sql.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type AuthConfig struct {
	Secret   string        `koanf:"secret"`
	TokenTTL time.Duration `koanf:"token_ttl"`
}

type TelegramConfig struct {
	Enabled bool   `koanf:"enabled"`
	Token   string `koanf:"token"`
	BaseURL string `koanf:"base_url"`
}

type BootstrapConfig struct {
	AdminUsername string `koanf:"admin_username"`
	AdminEmail    string `koanf:"admin_email"`
	AdminPassword string `koanf:"admin_password"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Default returns the built-in configuration, overridable via environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "lifeline",
			Password: "lifeline",
			Name:     "lifeline",
			SSLMode:  "disable",
			MaxConns: 20,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Telegram: TelegramConfig{
			BaseURL: "https://api.telegram.org",
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
			AdminEmail:    "admin@example.com",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the invariants that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required when telegram.enabled")
	}
	return nil
}
