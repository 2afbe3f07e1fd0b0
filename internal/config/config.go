package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type Config struct {
	Host           string      `yaml:"host"`
	Port           string      `yaml:"port"`
	MetricsPort    string      `yaml:"metrics_port"`
	APIPort        string      `yaml:"api_port"`
	APISecret      string      `yaml:"api_secret"`
	LogLevel       string      `yaml:"log_level"`
	LogFile        string      `yaml:"log_file"`
	MongoDB        MongoConfig `yaml:"mongodb"`
	RedisURL       string      `yaml:"redis_url"`
	NATS           NATSConfig  `yaml:"nats"`
	StoreRawHex    bool        `yaml:"store_raw_hex"`
	DeviceCacheTTL int         `yaml:"device_cache_ttl"`
	ConnTTL        int         `yaml:"conn_ttl"`
}

func defaults() *Config {
	return &Config{
		Host:        "0.0.0.0",
		Port:        "5023",
		MetricsPort: "9102",
		APIPort:     "8000",
		LogLevel:    "info",
		MongoDB: MongoConfig{
			Database: "tracking",
		},
		NATS: NATSConfig{
			Subject: "jttracker.positions",
		},
		StoreRawHex:    true,
		DeviceCacheTTL: 300,
		ConnTTL:        600,
	}
}

// LoadConfig reads the YAML file at path, if any, and then applies
// environment overrides. An empty path means defaults plus environment.
func LoadConfig(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	cfg.Host = getEnv("HOST", cfg.Host)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.APIPort = getEnv("API_PORT", cfg.APIPort)
	cfg.APISecret = getEnv("API_SECRET", cfg.APISecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.MongoDB.URI = getEnv("MONGODB_URI", cfg.MongoDB.URI)
	cfg.MongoDB.Database = getEnv("MONGODB_DATABASE", cfg.MongoDB.Database)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.Subject = getEnv("NATS_SUBJECT", cfg.NATS.Subject)

	if v := getEnv("STORE_RAW_HEX", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrap(err, "STORE_RAW_HEX")
		}
		cfg.StoreRawHex = b
	}
	if v := getEnv("DEVICE_CACHE_TTL", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "DEVICE_CACHE_TTL")
		}
		cfg.DeviceCacheTTL = n
	}
	if v := getEnv("CONN_TTL", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "CONN_TTL")
		}
		cfg.ConnTTL = n
	}

	for name, port := range map[string]string{"port": cfg.Port, "metrics_port": cfg.MetricsPort, "api_port": cfg.APIPort} {
		if err := validatePort(port); err != nil {
			return nil, errors.Wrap(err, name)
		}
	}
	return cfg, nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return errors.Errorf("invalid port %q", port)
	}
	return nil
}

func (c *Config) ListenAddress() string {
	return c.Host + ":" + c.Port
}

// IdleTimeout is how long a terminal connection may stay silent. Zero
// disables the limit.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.ConnTTL) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.DeviceCacheTTL) * time.Second
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.TrimSpace(value)
}
