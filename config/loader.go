package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix namespaces the service's environment variables, e.g.
// VOICEID_SERVER_PORT=8080 overrides server.port.
const envPrefix = "VOICEID"

// Option customizes Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config file path instead of searching.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile sets an explicit .env file path instead of searching.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// Load reads the service configuration. Precedence, lowest to highest:
// config.yml, .env file, process environment. The result has defaults
// applied and is validated.
func Load(opts ...Option) (*ServiceConfig, error) {
	var o loaderOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.envFile == "" {
		o.envFile = findFirst(".env.voiceid", ".env", "cmd/voiceid/.env")
	}
	if o.envFile != "" {
		// godotenv does not override variables already in the environment,
		// so the process environment keeps the highest precedence.
		if err := godotenv.Load(o.envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if o.configFile == "" {
		o.configFile = findFirst("config.yml", "cmd/voiceid/config.yml", "config/config.yml")
	}
	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", o.configFile, err)
		}
	}

	bindKnownKeys(v)

	cfg := &ServiceConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindKnownKeys registers the nested keys that environment variables may
// override. AutomaticEnv alone cannot discover nested keys absent from the
// YAML file.
func bindKnownKeys(v *viper.Viper) {
	for _, key := range []string{
		"name", "environment", "version",
		"logging.level", "logging.format", "logging.output",
		"server.host", "server.port", "server.max_body_mb",
		"observability.enabled", "observability.endpoint", "observability.insecure",
		"pipeline.temp_dir", "pipeline.threshold",
		"transcode.binary", "transcode.timeout",
		"api.tts_output_path",
		"embedding.base_url", "embedding.timeout",
		"transcription.enabled", "transcription.base_url", "transcription.model", "transcription.language",
		"synthesis.enabled", "synthesis.base_url", "synthesis.voice",
	} {
		_ = v.BindEnv(key)
	}
}

func findFirst(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
