package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	domaincfg "anima-backend/domain/config"
)

// Storage driver names
const (
	DriverMemory   = "memory"
	DriverDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	EventBusName  string

	// StorageDriver selects the persistence backend: memory or dynamodb
	StorageDriver string

	// Runtime collaborator
	RuntimeBaseURL string

	// Authentication
	InternalSecret    string
	OperatorJWTSecret string

	// Voting cadence: daily or rolling
	VotingMode string

	// Governance parameters
	Governance domaincfg.Governance

	// Job cadence
	RespawnPollInterval time.Duration

	// Logging and features
	LogLevel      string
	EnableMetrics bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	defaults := domaincfg.DefaultGovernance()

	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("DYNAMODB_TABLE", "anima"),
		EventBusName:  getEnv("EVENT_BUS_NAME", "anima-events"),
		StorageDriver: getEnv("STORAGE_DRIVER", DriverMemory),

		RuntimeBaseURL: getEnv("RUNTIME_BASE_URL", "http://localhost:9000"),

		InternalSecret:    getEnv("INTERNAL_SECRET", ""),
		OperatorJWTSecret: getEnv("OPERATOR_JWT_SECRET", ""),

		VotingMode: getEnv("VOTING_MODE", "daily"),

		Governance: domaincfg.Governance{
			MinVotesForDeath:       getEnvInt("MIN_VOTES_FOR_DEATH", defaults.MinVotesForDeath),
			RoundDuration:          getEnvDuration("ROUND_DURATION", defaults.RoundDuration),
			DemocracyCheckInterval: getEnvDuration("DEMOCRACY_CHECK_INTERVAL", defaults.DemocracyCheckInterval),
			RespawnDelayMin:        getEnvDuration("RESPAWN_DELAY_MIN", defaults.RespawnDelayMin),
			RespawnDelayMax:        getEnvDuration("RESPAWN_DELAY_MAX", defaults.RespawnDelayMax),
			MemoryRetentionLives:   getEnvInt("MEMORY_RETENTION_LIVES", defaults.MemoryRetentionLives),
		},

		RespawnPollInterval: getEnvDuration("RESPAWN_POLL_INTERVAL", 15*time.Second),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory, DriverDynamoDB:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverMemory, DriverDynamoDB, c.StorageDriver)
	}

	switch c.VotingMode {
	case "daily", "rolling":
	default:
		return fmt.Errorf("VOTING_MODE must be \"daily\" or \"rolling\", got %q", c.VotingMode)
	}

	if c.Governance.MinVotesForDeath < 1 {
		return fmt.Errorf("MIN_VOTES_FOR_DEATH must be at least 1")
	}
	if c.Governance.RespawnDelayMax < c.Governance.RespawnDelayMin {
		return fmt.Errorf("RESPAWN_DELAY_MAX must not be below RESPAWN_DELAY_MIN")
	}

	if c.Environment == "production" {
		if c.InternalSecret == "" {
			return fmt.Errorf("INTERNAL_SECRET is required in production")
		}
		if c.StorageDriver != DriverDynamoDB {
			return fmt.Errorf("STORAGE_DRIVER must be dynamodb in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
