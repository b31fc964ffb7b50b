// Package config loads mpcflow settings from a YAML file, a .env file and
// MPCFLOW_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/flowgraph/mpcflow/internal/compiler"
	"github.com/flowgraph/mpcflow/pkg/serialization"
	"github.com/flowgraph/mpcflow/pkg/validation"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "MPCFLOW_"

// Config holds all configuration for the mpcflow CLI
type Config struct {
	Log    LogConfig           `json:"log" yaml:"log"`
	Store  StoreConfig         `json:"store" yaml:"store"`
	Output OutputConfig        `json:"output" yaml:"output"`
	Job    compiler.JobOptions `json:"job" yaml:"job"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=json text"`
}

// StoreConfig selects where drafts are saved
type StoreConfig struct {
	Driver      string        `json:"driver" yaml:"driver" validate:"oneof=memory sqlite postgres"`
	DSN         string        `json:"dsn" yaml:"dsn" validate:"required_unless=Driver memory"`
	Table       string        `json:"table" yaml:"table"`
	Compression string        `json:"compression" yaml:"compression" validate:"omitempty,oneof=none gzip zstd"`
	EncryptKey  string        `json:"encryptKey" yaml:"encryptKey" validate:"omitempty,len=16|len=24|len=32"`
	TTL         time.Duration `json:"ttl" yaml:"ttl"`
}

// OutputConfig controls how compiled plans are written
type OutputConfig struct {
	Format      string `json:"format" yaml:"format" validate:"oneof=json msgpack"`
	Compression string `json:"compression" yaml:"compression" validate:"omitempty,oneof=none gzip zstd"`
	Indent      bool   `json:"indent" yaml:"indent"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Driver:      "sqlite",
			DSN:         "mpcflow.db",
			Compression: string(serialization.CompressionZstd),
		},
		Output: OutputConfig{
			Format: "json",
			Indent: true,
		},
	}
}

// Load reads path (optional), then .env and the process environment, and
// validates the result. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return validation.ValidateWithPlayground(c)
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnvWithDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvWithDefault("LOG_FORMAT", c.Log.Format)

	c.Store.Driver = getEnvWithDefault("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnvWithDefault("STORE_DSN", c.Store.DSN)
	c.Store.Table = getEnvWithDefault("STORE_TABLE", c.Store.Table)
	c.Store.Compression = getEnvWithDefault("STORE_COMPRESSION", c.Store.Compression)
	c.Store.EncryptKey = getEnvWithDefault("STORE_ENCRYPT_KEY", c.Store.EncryptKey)
	c.Store.TTL = getEnvAsDuration("STORE_TTL", c.Store.TTL)

	c.Output.Format = getEnvWithDefault("OUTPUT_FORMAT", c.Output.Format)
	c.Output.Compression = getEnvWithDefault("OUTPUT_COMPRESSION", c.Output.Compression)
	c.Output.Indent = getEnvAsBool("OUTPUT_INDENT", c.Output.Indent)

	c.Job.Name = getEnvWithDefault("JOB_NAME", c.Job.Name)
	c.Job.Description = getEnvWithDefault("JOB_DESCRIPTION", c.Job.Description)
	c.Job.CreateParticipantID = getEnvWithDefault("JOB_CREATOR", c.Job.CreateParticipantID)
	c.Job.ServiceType = getEnvAsInt("JOB_SERVICE_TYPE", c.Job.ServiceType)
	c.Job.ModelType = getEnvAsInt("JOB_MODEL_TYPE", c.Job.ModelType)
	c.Job.TLSEnable = getEnvAsBool("JOB_TLS_ENABLE", c.Job.TLSEnable)
}

// Serializer builds the serializer drafts are stored with
func (s StoreConfig) Serializer() (*serialization.Serializer, error) {
	compression, err := serialization.ParseCompression(s.Compression)
	if err != nil {
		return nil, err
	}
	sc := serialization.SerializationConfig{
		Codec:       serialization.NewMsgPackCodec(),
		Compression: compression,
		EncryptKey:  []byte(s.EncryptKey),
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return serialization.NewSerializer(sc), nil
}

// Serializer builds the serializer compiled plans are written with
func (o OutputConfig) Serializer() (*serialization.Serializer, error) {
	codec, err := serialization.CodecByName(o.Format)
	if err != nil {
		return nil, err
	}
	if o.Indent && codec.Name() == "json" {
		codec = serialization.NewIndentedJSONCodec()
	}
	compression, err := serialization.ParseCompression(o.Compression)
	if err != nil {
		return nil, err
	}
	return serialization.NewSerializer(serialization.SerializationConfig{
		Codec:       codec,
		Compression: compression,
	}), nil
}

// Helper functions for environment variable parsing

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr := os.Getenv(EnvPrefix + key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if valueStr := os.Getenv(EnvPrefix + key); valueStr != "" {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr := os.Getenv(EnvPrefix + key); valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
