package config

import (
	"strconv"
	"strings"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/bz888/quill/internal/completion"
	"github.com/spf13/viper"
)

const EnvPrefix = "QUILL"

// Keys as they appear in config files. Environment variables are the same keys,
// upper-cased behind EnvPrefix.
const (
	KeyConfig        = "config"
	KeyAPIKey        = "api_key"
	KeyAPIURL        = "api_url"
	KeyModel         = "model"
	KeyMaxTokens     = "max_tokens"
	KeyTemperature   = "temperature"
	KeyTimeout       = "timeout"
	KeyTranscriptDir = "transcript_dir"
	KeyDev           = "dev"
	KeyLogPath       = "log_path"
)

// FallbackAPIKeyEnv is consulted when QUILL_API_KEY is unset.
const FallbackAPIKeyEnv = "OPENAI_API_KEY"

type Config struct {
	APIKey    string
	APIURL    string
	Model     string
	MaxTokens int
	// Temperature is nil when the request should leave it to the server.
	Temperature   *float64
	Timeout       time.Duration
	TranscriptDir string
	Dev           bool
	LogPath       string
}

// SetDefaults prepares v with the environment bindings and defaults Load relies on.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyAPIKey, EnvPrefix+"_API_KEY", FallbackAPIKeyEnv)

	v.SetDefault(KeyAPIURL, completion.DefaultAPIURL)
	v.SetDefault(KeyModel, completion.DefaultModel)
	v.SetDefault(KeyMaxTokens, completion.DefaultMaxTokens)
	v.SetDefault(KeyTemperature, completion.DefaultTemperature)
	v.SetDefault(KeyTimeout, completion.DefaultTimeout.String())
	v.SetDefault(KeyTranscriptDir, ".")
}

// Load reads the optional config file named by KeyConfig and resolves every setting.
// Flags bound to v win over the environment, which wins over the file.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("failed to read config file " + path).
				WithCause(err)
		}
	}

	cfg := Config{
		APIKey:        strings.TrimSpace(v.GetString(KeyAPIKey)),
		APIURL:        strings.TrimSpace(v.GetString(KeyAPIURL)),
		Model:         strings.TrimSpace(v.GetString(KeyModel)),
		TranscriptDir: v.GetString(KeyTranscriptDir),
		Dev:           v.GetBool(KeyDev),
		LogPath:       v.GetString(KeyLogPath),
	}

	maxTokens, err := strconv.Atoi(strings.TrimSpace(v.GetString(KeyMaxTokens)))
	if err != nil || maxTokens <= 0 {
		return Config{}, invalid(KeyMaxTokens, v.GetString(KeyMaxTokens), "a positive integer", err)
	}
	cfg.MaxTokens = maxTokens

	temp, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(KeyTemperature)), 64)
	if err != nil {
		return Config{}, invalid(KeyTemperature, v.GetString(KeyTemperature), "a number", err)
	}
	if temp >= 0 {
		cfg.Temperature = &temp
	}

	timeout, err := parseTimeout(v.GetString(KeyTimeout))
	if err != nil || timeout <= 0 {
		return Config{}, invalid(KeyTimeout, v.GetString(KeyTimeout), "a positive duration such as 30s", err)
	}
	cfg.Timeout = timeout

	return cfg, nil
}

// parseTimeout accepts Go durations and bare numbers of seconds.
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(raw)
}

func invalid(key, value, want string, cause error) error {
	b := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(key + " must be " + want + ", got " + strconv.Quote(value))
	if cause != nil {
		return b.WithCause(cause)
	}
	return b
}

func (c Config) Completion() completion.Config {
	return completion.Config{
		APIURL:      c.APIURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

// SampleEnv is printed by the print-config command.
const SampleEnv = `# .env for quill
QUILL_API_KEY=YOUR_API_KEY_HERE
QUILL_API_URL=https://api.openai.com/v1/chat/completions
QUILL_MODEL=gpt-3.5-turbo
QUILL_MAX_TOKENS=400
# a negative temperature leaves it out of the request
QUILL_TEMPERATURE=0.7
QUILL_TIMEOUT=30s
QUILL_TRANSCRIPT_DIR=.
QUILL_DEV=false
QUILL_LOG_PATH=
`
