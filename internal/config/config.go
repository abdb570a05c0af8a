package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Host           string
	WebhookSecret  string
	InternalAPIKey string
	Broker        BrokerConfig
	Database      DatabaseConfig
	Connector     ConnectorConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c *DatabaseConfig) ConnectionString() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" sslmode=" + c.SSLMode
}

type BrokerConfig struct {
	URL      string
	ClientID string
	Username string
	Password string
}

// ConnectorConfig covers the built-in connectors. Timeout bounds every
// remote call so a hung target system cannot hold a run lock indefinitely.
type ConnectorConfig struct {
	Timeout time.Duration
	RESTURL string
	RESTKey string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "3002"),
		Host:           getEnv("HOST", "0.0.0.0"),
		WebhookSecret:  getEnv("WEBHOOK_SECRET", ""),
		InternalAPIKey: getEnv("INTERNAL_API_KEY", "engine-internal-key"),
		Broker: BrokerConfig{
			URL:      getEnv("BROKER_URL", "tcp://localhost:1883"),
			ClientID: getEnv("BROKER_CLIENT_ID", "idm-engine-001"),
			Username: getEnv("BROKER_USERNAME", ""),
			Password: getEnv("BROKER_PASSWORD", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DATABASE_HOST", "localhost"),
			Port:     getEnv("DATABASE_PORT", "5432"),
			User:     getEnv("DATABASE_USER", "idm"),
			Password: getEnv("DATABASE_PASSWORD", "idm"),
			Name:     getEnv("DATABASE_NAME", "idm"),
			SSLMode:  getEnv("DATABASE_SSLMODE", "disable"),
		},
		Connector: ConnectorConfig{
			Timeout: getEnvSeconds("CONNECTOR_TIMEOUT_SECONDS", 30),
			RESTURL: getEnv("CONNECTOR_REST_URL", ""),
			RESTKey: getEnv("CONNECTOR_REST_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}
