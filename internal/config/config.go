// Package config loads prepwise settings from defaults, an optional YAML
// file, .env files, PREPWISE_* environment variables and command flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abhisek/prepwise/internal/evaluation"
	"github.com/abhisek/prepwise/internal/llm"
	"github.com/abhisek/prepwise/internal/questiongen"
	"github.com/abhisek/prepwise/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. PREPWISE_LLM_PROVIDER.
const EnvPrefix = "PREPWISE"

// Config is the full process configuration.
type Config struct {
	LLM        llm.Config         `mapstructure:"llm"`
	Store      store.Config       `mapstructure:"store"`
	Server     ServerConfig       `mapstructure:"server"`
	Log        LogConfig          `mapstructure:"log"`
	Generation questiongen.Config `mapstructure:"generation"`
	Evaluation evaluation.Config  `mapstructure:"evaluation"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	GinMode        string   `mapstructure:"gin_mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// RateLimit is requests per second per client IP on routes that call
	// the model. Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures internal/logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		LLM:   llm.DefaultConfig(),
		Store: store.Config{Driver: store.DriverSQLite},
		Server: ServerConfig{
			Addr:            ":8080",
			GinMode:         "release",
			AllowedOrigins:  []string{"*"},
			RateLimit:       1,
			RateBurst:       5,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "pretty",
		},
		Generation: questiongen.DefaultConfig(),
		Evaluation: evaluation.DefaultConfig(),
	}
}

// flagKeys maps command flags to config keys.
var flagKeys = map[string]string{
	"db":         "store.dsn",
	"db-driver":  "store.driver",
	"provider":   "llm.provider",
	"addr":       "server.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-file":   "log.file",
}

// Load resolves the configuration. path names a YAML file; when empty,
// prepwise.yaml is looked up in the working directory and
// $XDG_CONFIG_HOME/prepwise, and a missing file is not an error. flags may
// be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	// Missing .env files are fine.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("prepwise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$XDG_CONFIG_HOME/prepwise")
		v.AddConfigPath("$HOME/.config/prepwise")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, flags); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if !cfg.LLM.HasKey() {
		if found, ok := llm.DiscoverConfig(); ok {
			adoptDiscovered(&cfg.LLM, found, explicitProvider(v, flags))
		}
	}

	return cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}

	// --model applies to whichever provider ends up selected.
	if f := flags.Lookup("model"); f != nil && f.Changed {
		v.Set("llm."+v.GetString("llm.provider")+".model", f.Value.String())
	}
	return nil
}

// explicitProvider reports whether llm.provider was chosen by the user
// rather than left at its default.
func explicitProvider(v *viper.Viper, flags *pflag.FlagSet) bool {
	if _, ok := os.LookupEnv(EnvPrefix + "_LLM_PROVIDER"); ok {
		return true
	}
	if flags != nil {
		if f := flags.Lookup("provider"); f != nil && f.Changed {
			return true
		}
	}
	return v.InConfig("llm.provider")
}

// adoptDiscovered fills in a key found in the standard provider variables
// (ANTHROPIC_API_KEY and friends). A provider chosen explicitly only takes
// its own key; otherwise the first provider with a key wins.
func adoptDiscovered(cfg *llm.Config, found llm.Config, pinned bool) {
	if pinned && found.Provider != cfg.Provider {
		return
	}
	cfg.Provider = found.Provider
	switch found.Provider {
	case "anthropic":
		cfg.Anthropic.APIKey = found.Anthropic.APIKey
	case "openai":
		cfg.OpenAI.APIKey = found.OpenAI.APIKey
	case "gemini":
		cfg.Gemini.APIKey = found.Gemini.APIKey
	case "openrouter":
		cfg.OpenRouter.APIKey = found.OpenRouter.APIKey
	}
}

func setDefaults(v *viper.Viper, d Config) {
	defaults := map[string]any{
		"llm.provider":            d.LLM.Provider,
		"llm.max_tokens":          d.LLM.MaxTokens,
		"llm.anthropic.api_key":   d.LLM.Anthropic.APIKey,
		"llm.anthropic.model":     d.LLM.Anthropic.Model,
		"llm.anthropic.base_url":  d.LLM.Anthropic.BaseURL,
		"llm.openai.api_key":      d.LLM.OpenAI.APIKey,
		"llm.openai.model":        d.LLM.OpenAI.Model,
		"llm.openai.base_url":     d.LLM.OpenAI.BaseURL,
		"llm.gemini.api_key":      d.LLM.Gemini.APIKey,
		"llm.gemini.model":        d.LLM.Gemini.Model,
		"llm.openrouter.api_key":  d.LLM.OpenRouter.APIKey,
		"llm.openrouter.model":    d.LLM.OpenRouter.Model,
		"llm.openrouter.base_url": d.LLM.OpenRouter.BaseURL,

		"store.driver": d.Store.Driver,
		"store.dsn":    d.Store.DSN,

		"server.addr":             d.Server.Addr,
		"server.gin_mode":         d.Server.GinMode,
		"server.allowed_origins":  d.Server.AllowedOrigins,
		"server.rate_limit":       d.Server.RateLimit,
		"server.rate_burst":       d.Server.RateBurst,
		"server.shutdown_timeout": d.Server.ShutdownTimeout,

		"log.level":  d.Log.Level,
		"log.format": d.Log.Format,
		"log.file":   d.Log.File,

		"generation.max_attempts":                  d.Generation.MaxAttempts,
		"generation.base_delay":                    d.Generation.BaseDelay,
		"generation.max_delay":                     d.Generation.MaxDelay,
		"generation.heuristic.beginner_max_len":    d.Generation.Heuristic.BeginnerMaxLen,
		"generation.heuristic.normal_min_len":      d.Generation.Heuristic.NormalMinLen,
		"generation.heuristic.normal_max_len":      d.Generation.Heuristic.NormalMaxLen,
		"generation.heuristic.advanced_min_len":    d.Generation.Heuristic.AdvancedMinLen,
		"generation.heuristic.advanced_vocabulary": d.Generation.Heuristic.AdvancedVocabulary,

		"evaluation.max_attempts": d.Evaluation.MaxAttempts,
		"evaluation.base_delay":   d.Evaluation.BaseDelay,
		"evaluation.jitter":       d.Evaluation.Jitter,
		"evaluation.timeout":      d.Evaluation.Timeout,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
