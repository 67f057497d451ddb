package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "PUBLIC_EYE_"

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	RabbitMQ  RabbitMQConfig  `json:"rabbitmq"`
	JWT       JWTConfig       `json:"jwt"`
	Complaint ComplaintConfig `json:"complaint"`
	Geocoder  GeocoderConfig  `json:"geocoder"`
	Log       LogConfig       `json:"log"`
}

type ServerConfig struct {
	Port                  string `json:"port"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	Path     string `json:"path"`
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite&_txlock=immediate", d.Path)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.DBName,
		d.SSLMode,
	)
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type RabbitMQConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Enabled reports whether a broker is configured. Without one, events are
// dispatched in-process.
func (r RabbitMQConfig) Enabled() bool {
	return r.Host != ""
}

type JWTConfig struct {
	Secret string `json:"secret"`
}

type ComplaintConfig struct {
	IDPrefix     string `json:"id_prefix"`
	RewardPoints int    `json:"reward_points"`
}

type GeocoderConfig struct {
	BaseURL        string `json:"base_url"`
	UserAgent      string `json:"user_agent"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (g GeocoderConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the configuration used when neither file nor environment
// set a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                  "5000",
			RequestTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{
			Driver:  DriverPostgres,
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "public_eye",
			SSLMode: "disable",
			Path:    "public-eye.db",
		},
		Complaint: ComplaintConfig{
			IDPrefix:     "CVC",
			RewardPoints: 10,
		},
		Geocoder: GeocoderConfig{
			BaseURL:        "https://nominatim.openstreetmap.org",
			UserAgent:      "PublicEyeApp",
			TimeoutSeconds: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads the JSON file at path over the defaults, then applies
// PUBLIC_EYE_* environment overrides (a .env file in the working directory
// is loaded first if present). A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			decoder := json.NewDecoder(file)
			if err := decoder.Decode(config); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	_ = godotenv.Load()
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(c *Config) {
	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.Server.RequestTimeoutSeconds = getEnvInt("REQUEST_TIMEOUT_SECONDS", c.Server.RequestTimeoutSeconds)

	c.Database.Driver = getEnvOrDefault("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnvOrDefault("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvOrDefault("DB_PORT", c.Database.Port)
	c.Database.User = getEnvOrDefault("DB_USER", c.Database.User)
	c.Database.Password = getEnvOrDefault("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnvOrDefault("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", c.Database.SSLMode)
	c.Database.Path = getEnvOrDefault("DB_PATH", c.Database.Path)

	c.RabbitMQ.Host = getEnvOrDefault("RABBITMQ_HOST", c.RabbitMQ.Host)
	c.RabbitMQ.Port = getEnvOrDefault("RABBITMQ_PORT", c.RabbitMQ.Port)
	c.RabbitMQ.User = getEnvOrDefault("RABBITMQ_USER", c.RabbitMQ.User)
	c.RabbitMQ.Password = getEnvOrDefault("RABBITMQ_PASSWORD", c.RabbitMQ.Password)

	c.JWT.Secret = getEnvOrDefault("JWT_SECRET", c.JWT.Secret)

	c.Complaint.IDPrefix = getEnvOrDefault("ID_PREFIX", c.Complaint.IDPrefix)
	c.Complaint.RewardPoints = getEnvInt("REWARD_POINTS", c.Complaint.RewardPoints)

	c.Geocoder.BaseURL = getEnvOrDefault("GEOCODER_URL", c.Geocoder.BaseURL)

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Database.Driver != DriverPostgres && c.Database.Driver != DriverSQLite {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Complaint.IDPrefix == "" {
		return errors.New("complaint id prefix is required")
	}
	if c.Complaint.RewardPoints <= 0 {
		return errors.New("reward points must be positive")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return errors.New("request timeout must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
