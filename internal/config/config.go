// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// DOCQUERY_SERVER_LISTEN for server.listen.
const EnvPrefix = "DOCQUERY"

// Config is the top-level docquery configuration.
type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Index      IndexConfig               `mapstructure:"index"`
	Embeddings EmbeddingsConfig          `mapstructure:"embeddings"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     ModelsConfig              `mapstructure:"models"`
	Answer     AnswerConfig              `mapstructure:"answer"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen         string        `mapstructure:"listen"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// StorageConfig locates uploaded documents on disk.
type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
}

// IndexConfig controls how documents are split and searched.
type IndexConfig struct {
	Backend      string `mapstructure:"backend"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TopK         int    `mapstructure:"top_k"`
}

// EmbeddingsConfig selects the embedding backend.
type EmbeddingsConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig selects the chat model used to answer queries.
type ModelsConfig struct {
	Default  string   `mapstructure:"default"`
	Failover []string `mapstructure:"failover"`
}

// AnswerConfig controls answer synthesis.
type AnswerConfig struct {
	Mode        string  `mapstructure:"mode"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

var (
	validBackends           = []string{"sqlite", "memory"}
	validEmbeddingProviders = []string{"openai", "google", "tfidf"}
	validAnswerModes        = []string{"llm", "extractive"}
)

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "0.0.0.0:8000")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(32<<20))
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 0)

	v.SetDefault("storage.upload_dir", "data")

	v.SetDefault("index.backend", "sqlite")
	v.SetDefault("index.chunk_size", 1024)
	v.SetDefault("index.chunk_overlap", 200)
	v.SetDefault("index.top_k", 2)

	v.SetDefault("embeddings.provider", "openai")
	v.SetDefault("embeddings.model", "")
	v.SetDefault("embeddings.dimensions", 0)
	v.SetDefault("embeddings.batch_size", 64)

	v.SetDefault("models.default", "openai/gpt-3.5-turbo")
	v.SetDefault("models.failover", []string{})

	v.SetDefault("answer.mode", "llm")
	v.SetDefault("answer.max_tokens", 512)
	v.SetDefault("answer.temperature", 0.1)
}

// SetupEnv enables DOCQUERY_ overrides and binds the conventional provider
// key variables so an existing OPENAI_API_KEY works without extra setup.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	providerEnv := map[string][]string{
		"openai":    {"OPENAI_API_KEY", "OPENAI_BASE_URL"},
		"anthropic": {"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"},
		"google":    {"GEMINI_API_KEY", ""},
	}
	for name, env := range providerEnv {
		prefix := EnvPrefix + "_PROVIDERS_" + strings.ToUpper(name)
		_ = v.BindEnv("providers."+name+".api_key", prefix+"_API_KEY", env[0])
		if env[1] != "" {
			_ = v.BindEnv("providers."+name+".endpoint", prefix+"_ENDPOINT", env[1])
		} else {
			_ = v.BindEnv("providers."+name+".endpoint", prefix+"_ENDPOINT")
		}
	}
}

// Load reads configuration from path (optional) with defaults and
// environment overrides applied, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, dqerr.Errorf(dqerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dqerr.Errorf(dqerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, dqerr.Errorf(dqerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate returns every problem found in the configuration.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateIndex()...)
	errs = append(errs, c.validateEmbeddings()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateAnswer()...)

	return errs
}

// ProviderNames returns the providers that carry an API key.
func (c *Config) ProviderNames() []string {
	var names []string
	for name, pc := range c.Providers {
		if pc.APIKey != "" {
			names = append(names, name)
		}
	}
	return names
}

func (c *Config) validateServer() []error {
	var errs []error

	if err := validateListen(c.Server.Listen); err != nil {
		errs = append(errs, err)
	}

	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, invalid("server.max_upload_bytes must be greater than 0, got %d", c.Server.MaxUploadBytes))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, invalid("server.read_timeout must not be negative, got %s", c.Server.ReadTimeout))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, invalid("server.write_timeout must not be negative, got %s", c.Server.WriteTimeout))
	}

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, invalid("server.rate_limit_rps must not be negative, got %g", c.Server.RateLimitRPS))
	}
	if c.Server.RateLimitBurst < 0 {
		errs = append(errs, invalid("server.rate_limit_burst must not be negative, got %d", c.Server.RateLimitBurst))
	} else if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst == 0 {
		errs = append(errs, invalid("server.rate_limit_burst must be greater than 0 when server.rate_limit_rps is set"))
	}

	return errs
}

func validateListen(listen string) error {
	if listen == "" {
		return invalid("server.listen must not be empty")
	}

	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return invalid("server.listen must be a valid host:port address, got %q: %w", listen, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return invalid("server.listen port must be a number, got %q", portStr)
	}
	if port < 1 || port > 65535 {
		return invalid("server.listen port must be between 1 and 65535, got %d", port)
	}

	return nil
}

func (c *Config) validateStorage() []error {
	if strings.TrimSpace(c.Storage.UploadDir) == "" {
		return []error{invalid("storage.upload_dir must not be empty")}
	}
	return nil
}

func (c *Config) validateIndex() []error {
	var errs []error

	if !oneOf(c.Index.Backend, validBackends) {
		errs = append(errs, invalid("index.backend must be one of [%s], got %q",
			strings.Join(validBackends, ", "), c.Index.Backend))
	}

	if c.Index.ChunkSize <= 0 {
		errs = append(errs, invalid("index.chunk_size must be greater than 0, got %d", c.Index.ChunkSize))
	}
	if c.Index.ChunkOverlap < 0 {
		errs = append(errs, invalid("index.chunk_overlap must not be negative, got %d", c.Index.ChunkOverlap))
	} else if c.Index.ChunkSize > 0 && c.Index.ChunkOverlap >= c.Index.ChunkSize {
		errs = append(errs, invalid("index.chunk_overlap (%d) must be smaller than index.chunk_size (%d)",
			c.Index.ChunkOverlap, c.Index.ChunkSize))
	}

	if c.Index.TopK <= 0 {
		errs = append(errs, invalid("index.top_k must be greater than 0, got %d", c.Index.TopK))
	}

	return errs
}

func (c *Config) validateEmbeddings() []error {
	var errs []error

	if !oneOf(c.Embeddings.Provider, validEmbeddingProviders) {
		errs = append(errs, invalid("embeddings.provider must be one of [%s], got %q",
			strings.Join(validEmbeddingProviders, ", "), c.Embeddings.Provider))
	}
	if c.Embeddings.Dimensions < 0 {
		errs = append(errs, invalid("embeddings.dimensions must not be negative, got %d", c.Embeddings.Dimensions))
	}
	if c.Embeddings.BatchSize <= 0 {
		errs = append(errs, invalid("embeddings.batch_size must be greater than 0, got %d", c.Embeddings.BatchSize))
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Default != "" && !isModelRef(c.Models.Default) {
		errs = append(errs, invalid("models.default must be in \"provider/model\" format, got %q", c.Models.Default))
	}

	for i, ref := range c.Models.Failover {
		if !isModelRef(ref) {
			errs = append(errs, invalid("models.failover[%d] must be in \"provider/model\" format, got %q", i, ref))
		}
	}

	return errs
}

func (c *Config) validateAnswer() []error {
	var errs []error

	if !oneOf(c.Answer.Mode, validAnswerModes) {
		errs = append(errs, invalid("answer.mode must be one of [%s], got %q",
			strings.Join(validAnswerModes, ", "), c.Answer.Mode))
	}
	if c.Answer.MaxTokens <= 0 {
		errs = append(errs, invalid("answer.max_tokens must be greater than 0, got %d", c.Answer.MaxTokens))
	}
	if c.Answer.Temperature < 0 || c.Answer.Temperature > 2 {
		errs = append(errs, invalid("answer.temperature must be between 0 and 2, got %g", c.Answer.Temperature))
	}

	return errs
}

func invalid(format string, args ...any) error {
	return dqerr.Errorf(dqerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func isModelRef(ref string) bool {
	idx := strings.Index(ref, "/")
	return idx > 0 && idx < len(ref)-1
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
