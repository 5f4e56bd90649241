// Package config loads chaincode runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ServerConfig holds the chaincode-as-a-service settings. An empty Address
// means the chaincode dials the peer instead of listening.
type ServerConfig struct {
	CCID        string
	Address     string
	TLSDisabled bool
	KeyPath     string
	CertPath    string
	ClientCA    string
}

// External reports whether the chaincode runs as an external service.
func (s ServerConfig) External() bool {
	return s.Address != ""
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string
	Environment string
}

// Config holds all configuration.
type Config struct {
	ServiceName string
	Server      ServerConfig
	Log         LogConfig
}

// Load reads configuration from the environment after applying an optional .env file.
func Load(serviceName string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		ServiceName: serviceName,
		Server: ServerConfig{
			CCID:        getEnv("CHAINCODE_ID", ""),
			Address:     getEnv("CHAINCODE_SERVER_ADDRESS", ""),
			TLSDisabled: getEnvAsBool("CHAINCODE_TLS_DISABLED", false),
			KeyPath:     getEnv("CHAINCODE_TLS_KEY", ""),
			CertPath:    getEnv("CHAINCODE_TLS_CERT", ""),
			ClientCA:    getEnv("CHAINCODE_CLIENT_CA_CERT", ""),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("APP_ENV", "production"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that an external service has everything it needs.
func (c *Config) Validate() error {
	s := c.Server
	if !s.External() {
		return nil
	}
	if s.CCID == "" {
		return fmt.Errorf("CHAINCODE_ID is required when CHAINCODE_SERVER_ADDRESS is set")
	}
	if !s.TLSDisabled && (s.KeyPath == "" || s.CertPath == "") {
		return fmt.Errorf("CHAINCODE_TLS_KEY and CHAINCODE_TLS_CERT are required when TLS is enabled")
	}
	return nil
}

// Fields returns the configuration as zap fields.
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Log.Environment),
		zap.String("ccid", c.Server.CCID),
		zap.String("address", c.Server.Address),
		zap.Bool("tls_disabled", c.Server.TLSDisabled),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
