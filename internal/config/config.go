package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	sinkkafka "modelwrap/sink/kafka"
)

const (
	SupportedSchema = "v1"
	// EnvPrefix starts every override; "__" separates nesting levels, so
	// MODELWRAP_GRPC__WORKERS sets grpc.workers.
	EnvPrefix = "MODELWRAP_"
)

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type HTTPConfig struct {
	Port         int      `koanf:"port"`
	APIDoc       string   `koanf:"api_doc"`
	MaxBodyBytes int64    `koanf:"max_body_bytes"`
	CORSOrigins  []string `koanf:"cors_origins"`
}

type GRPCConfig struct {
	Port           int `koanf:"port"`
	Workers        int `koanf:"workers"`
	MaxMessageSize int `koanf:"max_message_size"` // 0 = grpc default
}

type MetricsConfig struct {
	Port int `koanf:"port"` // 0 = disabled
}

type TracingConfig struct {
	Endpoint string `koanf:"endpoint"` // empty = disabled
}

type ModelConfig struct {
	File string `koanf:"file"`
}

type RequestLogConfig struct {
	Sinks []string         `koanf:"sinks"`
	Kafka sinkkafka.Config `koanf:"kafka"`
}

type StreamConfig struct {
	Enabled      bool             `koanf:"enabled"`
	Direction    string           `koanf:"direction"` // input|output
	Driver       string           `koanf:"driver"`
	SourceConfig string           `koanf:"source_config"`
	Output       sinkkafka.Config `koanf:"output"`
}

type Config struct {
	SchemaVersion   string           `koanf:"schema_version"`
	ServiceName     string           `koanf:"service_name"`
	Log             LogConfig        `koanf:"log"`
	HTTP            HTTPConfig       `koanf:"http"`
	GRPC            GRPCConfig       `koanf:"grpc"`
	Metrics         MetricsConfig    `koanf:"metrics"`
	Tracing         TracingConfig    `koanf:"tracing"`
	AnnotationsFile string           `koanf:"annotations_file"`
	Model           ModelConfig      `koanf:"model"`
	RequestLog      RequestLogConfig `koanf:"request_log"`
	Stream          StreamConfig     `koanf:"stream"`
}

// Load merges YAML (if present) with MODELWRAP_ env-vars and applies
// defaults. Relative model and stream source paths are resolved against the
// config file's directory.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if sv := k.String("schema_version"); sv != "" && sv != SupportedSchema {
		return Config{}, fmt.Errorf("config: schema_version %q not supported (want %q)", sv, SupportedSchema)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	applyDefaults(&cfg)
	if path != "" {
		dir := filepath.Dir(path)
		cfg.Model.File = resolve(dir, cfg.Model.File)
		cfg.Stream.SourceConfig = resolve(dir, cfg.Stream.SourceConfig)
	}
	return cfg, cfg.Validate()
}

// Default returns the configuration Load produces with no file and no env.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func (c Config) Validate() error {
	switch c.Stream.Direction {
	case "input", "output":
	default:
		return fmt.Errorf("config: stream.direction %q must be input or output", c.Stream.Direction)
	}
	if c.GRPC.Workers < 1 {
		return fmt.Errorf("config: grpc.workers must be positive, got %d", c.GRPC.Workers)
	}
	if c.GRPC.MaxMessageSize < 0 {
		return fmt.Errorf("config: grpc.max_message_size must not be negative")
	}
	if c.Stream.Enabled && c.Stream.Output.Topic == "" {
		return errors.New("config: stream.output.topic is required when stream is enabled")
	}
	return nil
}

func envKey(key, value string) (string, any) {
	k := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	k = strings.ReplaceAll(k, "__", ".")
	if strings.Contains(value, ",") {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return k, parts
	}
	return k, value
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func applyDefaults(c *Config) {
	if c.SchemaVersion == "" {
		c.SchemaVersion = SupportedSchema
	}
	if c.ServiceName == "" {
		c.ServiceName = "modelwrap"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 9000
	}
	if c.HTTP.APIDoc == "" {
		c.HTTP.APIDoc = "seldon.json"
	}
	if c.HTTP.MaxBodyBytes == 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}
	if c.GRPC.Port == 0 {
		c.GRPC.Port = 5000
	}
	if c.GRPC.Workers == 0 {
		c.GRPC.Workers = 10
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 6000
	}
	if c.AnnotationsFile == "" {
		c.AnnotationsFile = "/etc/podinfo/annotations"
	}
	if c.Stream.Direction == "" {
		c.Stream.Direction = "input"
	}
	if c.Stream.Driver == "" {
		c.Stream.Driver = "sarama"
	}
}
