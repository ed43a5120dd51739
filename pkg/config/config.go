package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address is the host:port the HTTP server listens on.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type UploadConfig struct {
	MaxBytes          int64    `mapstructure:"max_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	// AllowFilePath lets clients name a file already on the server.
	AllowFilePath bool `mapstructure:"allow_file_path"`
}

type AnalysisConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	ReferenceFile string        `mapstructure:"reference_file"`
}

type PipelineConfig struct {
	DecodeWorkers   int `mapstructure:"decode_workers"`
	AnalysisWorkers int `mapstructure:"analysis_workers"`
	StorageWorkers  int `mapstructure:"storage_workers"`
	QueueSize       int `mapstructure:"queue_size"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const envPrefix = "STRESS"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 10000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("upload.max_bytes", int64(32<<20))
	v.SetDefault("upload.allowed_extensions", []string{".opus"})
	v.SetDefault("upload.allow_file_path", false)

	v.SetDefault("analysis.timeout", 2*time.Minute)
	v.SetDefault("analysis.reference_file", "")

	v.SetDefault("pipeline.decode_workers", 2)
	v.SetDefault("pipeline.analysis_workers", 4)
	v.SetDefault("pipeline.storage_workers", 1)
	v.SetDefault("pipeline.queue_size", 100)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads .env (if present), STRESS_* environment variables and an
// optional config file, in increasing order of precedence for the file.
// The bare PORT variable is honoured for hosted deployments.
func Load(file string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind PORT: %w", err)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_bytes must be positive"))
	}
	if c.Analysis.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("analysis.timeout must be positive"))
	}
	for name, n := range map[string]int{
		"pipeline.decode_workers":   c.Pipeline.DecodeWorkers,
		"pipeline.analysis_workers": c.Pipeline.AnalysisWorkers,
		"pipeline.storage_workers":  c.Pipeline.StorageWorkers,
		"pipeline.queue_size":       c.Pipeline.QueueSize,
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}
