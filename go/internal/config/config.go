package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Event backends.
const (
	BackendLog   = "log"
	BackendNATS  = "nats"
	BackendKafka = "kafka"
	BackendNone  = "none"
)

// Config is the process configuration: YAML file first, environment on top.
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Room struct {
		TurnSeconds int           `yaml:"turn_seconds"`
		CodeLength  int           `yaml:"code_length"`
		LingerTTL   time.Duration `yaml:"linger_ttl"`
	} `yaml:"room"`

	Events struct {
		Backend    string        `yaml:"backend"`
		BufferSize int           `yaml:"buffer_size"`
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
		NATS       struct {
			URL           string `yaml:"url"`
			Stream        string `yaml:"stream"`
			SubjectPrefix string `yaml:"subject_prefix"`
		} `yaml:"nats"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
	} `yaml:"events"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var c Config
	c.Server.Port = "8080"
	c.Server.AllowedOrigins = []string{"*"}
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Log.Level = "info"
	c.Log.Format = "console"
	c.Room.TurnSeconds = 10
	c.Room.CodeLength = 6
	c.Room.LingerTTL = 5 * time.Minute
	c.Events.Backend = BackendLog
	c.Events.BufferSize = 1024
	c.Events.MaxRetries = 3
	c.Events.RetryDelay = time.Second
	c.Events.NATS.URL = "nats://localhost:4222"
	c.Events.NATS.Stream = "CONNECTFOUR_EVENTS"
	c.Events.NATS.SubjectPrefix = "connectfour.events"
	c.Events.Kafka.Brokers = []string{"localhost:9092"}
	c.Events.Kafka.Topic = "connectfour.match-events"
	return c
}

// Load reads the YAML file at path when it exists, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Room.TurnSeconds = getEnvAsInt("TURN_SECONDS", c.Room.TurnSeconds)
	c.Room.CodeLength = getEnvAsInt("ROOM_CODE_LENGTH", c.Room.CodeLength)
	c.Room.LingerTTL = getEnvAsDuration("ROOM_LINGER_TTL", c.Room.LingerTTL)
	c.Events.Backend = strings.ToLower(getEnv("EVENTS_BACKEND", c.Events.Backend))
	c.Events.NATS.URL = getEnv("NATS_URL", c.Events.NATS.URL)
	c.Events.NATS.Stream = getEnv("NATS_STREAM", c.Events.NATS.Stream)
	c.Events.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.Events.NATS.SubjectPrefix)
	c.Events.Kafka.Brokers = getEnvAsList("KAFKA_BROKERS", c.Events.Kafka.Brokers)
	c.Events.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Events.Kafka.Topic)
}

func (c Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Room.TurnSeconds <= 0 {
		return fmt.Errorf("room.turn_seconds must be positive, got %d", c.Room.TurnSeconds)
	}
	if c.Room.CodeLength < 4 || c.Room.CodeLength > 12 {
		return fmt.Errorf("room.code_length must be between 4 and 12, got %d", c.Room.CodeLength)
	}
	switch c.Events.Backend {
	case BackendLog, BackendNone:
	case BackendNATS:
		if c.Events.NATS.URL == "" {
			return errors.New("events.nats.url is required for the nats backend")
		}
	case BackendKafka:
		if len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "" {
			return errors.New("events.kafka.brokers and events.kafka.topic are required for the kafka backend")
		}
	default:
		return fmt.Errorf("unknown events.backend %q", c.Events.Backend)
	}
	return nil
}

// TurnDuration is the per-turn countdown.
func (c Config) TurnDuration() time.Duration {
	return time.Duration(c.Room.TurnSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
