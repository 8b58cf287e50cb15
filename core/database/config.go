package database

import "fmt"

// Config holds database connection settings shared across bots.
type Config struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Validate checks the settings required to open a connection.
func (c Config) Validate() error {
	if c.Host == "" || c.Name == "" || c.User == "" {
		return fmt.Errorf("database host, name and user are required")
	}
	return nil
}

// KeywordDSN renders the lib/pq keyword/value connection string.
func (c Config) KeywordDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.portOrDefault(), c.Name, c.sslModeOrDefault(),
	)
}

// URLDSN renders the postgres:// URL form expected by golang-migrate.
func (c Config) URLDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.portOrDefault(), c.Name, c.sslModeOrDefault(),
	)
}

func (c Config) portOrDefault() string {
	if c.Port == "" {
		return "5432"
	}
	return c.Port
}

func (c Config) sslModeOrDefault() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}
