package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the API service.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Identity IdentityConfig `json:"identity"`
	Alerting AlertingConfig `json:"alerting"`
	Liveness LivenessConfig `json:"liveness"`
	Weather  WeatherConfig  `json:"weather"`
	Ingest   IngestConfig   `json:"ingest"`
	Logging  LoggingConfig  `json:"logging"`
	CORS     CORSConfig     `json:"cors"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig holds state-store configuration. Driver selects between the
// postgres production store and the pure-Go sqlite store used for small
// deployments and tests.
type DatabaseConfig struct {
	Driver     string `json:"driver"` // postgres or sqlite
	SQLitePath string `json:"sqlite_path"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	DBName     string `json:"db_name"`
	SSLMode    string `json:"ssl_mode"`
	MaxConns   int    `json:"max_conns"`
	MinConns   int    `json:"min_conns"`
}

// IdentityConfig holds owner-resolution configuration. Requests with no
// resolvable owner are attributed to DefaultOwnerID, never dropped.
type IdentityConfig struct {
	JWTSecretKey   string `json:"jwt_secret_key"`
	JWTIssuer      string `json:"jwt_issuer"`
	DefaultOwnerID string `json:"default_owner_id"`
}

// AlertingConfig holds the threshold rule catalog. Values are per-deployment
// tunables injected into the alerting engine at construction.
type AlertingConfig struct {
	FrostBelow    float64 `json:"frost_below"`
	HeatwaveAbove float64 `json:"heatwave_above"`
	WindAbove     float64 `json:"wind_above"`
	RainAbove     float64 `json:"rain_above"`
	BatteryBelow  float64 `json:"battery_below"`
}

// LivenessConfig holds the offline-sweep configuration.
type LivenessConfig struct {
	Timeout       time.Duration `json:"timeout"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// WeatherConfig holds the external weather collaborator configuration.
// With an empty APIKey the service synthesizes snapshots instead.
type WeatherConfig struct {
	APIKey          string        `json:"api_key"`
	BaseURL         string        `json:"base_url"`
	DefaultLocation string        `json:"default_location"`
	RequestTimeout  time.Duration `json:"request_timeout"`
}

// IngestConfig holds ingestion-gateway configuration.
type IngestConfig struct {
	InternalAPISecret string `json:"internal_api_secret"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// MQTTConfig holds MQTT broker configuration for the ingestor service.
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// IngestorConfig holds configuration for the MQTT Ingestor service.
type IngestorConfig struct {
	Server            ServerConfig  `json:"server"`
	MQTT              MQTTConfig    `json:"mqtt"`
	Logging           LoggingConfig `json:"logging"`
	BatchSize         int           `json:"batch_size"`
	BatchWindow       time.Duration `json:"batch_window"`
	ApiServiceURL     string        `json:"api_service_url"`
	InternalAPISecret string        `json:"internal_api_secret"`
}

// Load loads the API service configuration from environment variables with
// fallback defaults. A .env file is honored when present.
func Load() (*Config, error) {
	// Missing .env is fine; plain environment variables work too.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "9002"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("STORE_DRIVER", "postgres"),
			SQLitePath: getEnv("SQLITE_PATH", "telemetry.sqlite"),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getInt("POSTGRES_PORT", 5432),
			User:       getEnv("POSTGRES_USER", ""),
			Password:   getEnv("POSTGRES_PASSWORD", ""),
			DBName:     getEnv("POSTGRES_DB", "telemetry"),
			SSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:   getInt("POSTGRES_MAX_CONNS", 25),
			MinConns:   getInt("POSTGRES_MIN_CONNS", 5),
		},
		Identity: IdentityConfig{
			JWTSecretKey:   getEnv("JWT_SECRET_KEY", "change-this-secret-in-production"),
			JWTIssuer:      getEnv("JWT_ISSUER", "agt-api-service"),
			DefaultOwnerID: getEnv("DEFAULT_OWNER_ID", "default-owner"),
		},
		Alerting: AlertingConfig{
			FrostBelow:    getFloat("ALERT_FROST_BELOW", 3.0),
			HeatwaveAbove: getFloat("ALERT_HEATWAVE_ABOVE", 40.0),
			WindAbove:     getFloat("ALERT_WIND_ABOVE", 50.0),
			RainAbove:     getFloat("ALERT_RAIN_ABOVE", 20.0),
			BatteryBelow:  getFloat("ALERT_BATTERY_BELOW", 20.0),
		},
		Liveness: LivenessConfig{
			Timeout:       getDuration("LIVENESS_TIMEOUT", 5*time.Minute),
			SweepInterval: getDuration("LIVENESS_SWEEP_INTERVAL", 60*time.Second),
		},
		Weather: WeatherConfig{
			APIKey:          getEnv("WEATHER_API_KEY", ""),
			BaseURL:         getEnv("WEATHER_API_URL", "https://api.openweathermap.org/data/2.5/weather"),
			DefaultLocation: getEnv("WEATHER_DEFAULT_LOCATION", "Tunis"),
			RequestTimeout:  getDuration("WEATHER_REQUEST_TIMEOUT", 10*time.Second),
		},
		Ingest: IngestConfig{
			InternalAPISecret: getEnv("INTERNAL_API_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getInt("CORS_MAX_AGE", 43200),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadIngestorConfig loads configuration for the MQTT Ingestor service.
func LoadIngestorConfig() (*IngestorConfig, error) {
	_ = godotenv.Load()

	cfg := &IngestorConfig{
		Server: ServerConfig{
			Port:         getEnv("INGESTOR_PORT", "9003"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		MQTT: MQTTConfig{
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			Topic:       getEnv("MQTT_TOPIC", "telemetry/#"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "telemetry-ingestor"),
			SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		},
		BatchSize:         getInt("INGEST_BATCH_SIZE", 128),
		BatchWindow:       getDuration("INGEST_BATCH_WINDOW", 2*time.Second),
		ApiServiceURL:     getEnv("API_SERVICE_URL", "http://api-service:9002"),
		InternalAPISecret: getRequiredEnv("INTERNAL_API_SECRET"),
	}

	if cfg.ApiServiceURL == "" {
		return nil, fmt.Errorf("API_SERVICE_URL is required")
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.User == "" {
			return fmt.Errorf("POSTGRES_USER is required when STORE_DRIVER=postgres")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required when STORE_DRIVER=postgres")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (expected postgres or sqlite)", c.Database.Driver)
	}
	if c.Identity.JWTSecretKey == "change-this-secret-in-production" {
		log.Println("WARNING: Using default JWT secret key. Change JWT_SECRET_KEY in production!")
	}
	if c.Identity.DefaultOwnerID == "" {
		return fmt.Errorf("DEFAULT_OWNER_ID must not be empty")
	}
	if c.Liveness.Timeout <= 0 || c.Liveness.SweepInterval <= 0 {
		return fmt.Errorf("liveness timeout and sweep interval must be positive")
	}
	return nil
}

// GetDatabaseDSN returns the postgres connection string.
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetMQTTBrokerURL returns the MQTT broker URL.
func (c *IngestorConfig) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("missing required environment variable: %s", key)
	}
	return value
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return floatValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "TRUE":
		return true
	case "0", "false", "FALSE":
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
