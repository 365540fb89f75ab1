package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bz888/quill/internal/completion"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	for _, key := range []string{"API_KEY", "API_URL", "MODEL", "MAX_TOKENS", "TEMPERATURE", "TIMEOUT", "TRANSCRIPT_DIR", "DEV", "LOG_PATH"} {
		t.Setenv(EnvPrefix+"_"+key, "")
		os.Unsetenv(EnvPrefix + "_" + key)
	}
	t.Setenv(FallbackAPIKeyEnv, "")
	os.Unsetenv(FallbackAPIKeyEnv)

	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "", cfg.APIKey)
	assert.Equal(t, completion.DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, completion.DefaultModel, cfg.Model)
	assert.Equal(t, completion.DefaultMaxTokens, cfg.MaxTokens)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, completion.DefaultTemperature, *cfg.Temperature)
	assert.Equal(t, completion.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, ".", cfg.TranscriptDir)
	assert.False(t, cfg.Dev)
}

func TestLoadFromEnv(t *testing.T) {
	v := newViper(t)
	t.Setenv("QUILL_API_KEY", " sk-env ")
	t.Setenv("QUILL_MODEL", "gpt-4o-mini")
	t.Setenv("QUILL_MAX_TOKENS", "64")
	t.Setenv("QUILL_TEMPERATURE", "0.2")
	t.Setenv("QUILL_TIMEOUT", "5")
	t.Setenv("QUILL_DEV", "true")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 64, cfg.MaxTokens)
	assert.Equal(t, 0.2, *cfg.Temperature)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.Dev)
}

func TestAPIKeyFallback(t *testing.T) {
	v := newViper(t)
	t.Setenv(FallbackAPIKeyEnv, "sk-openai")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.APIKey)

	t.Setenv("QUILL_API_KEY", "sk-quill")
	cfg, err = Load(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-quill", cfg.APIKey)
}

func TestNegativeTemperatureIsOmitted(t *testing.T) {
	v := newViper(t)
	t.Setenv("QUILL_TEMPERATURE", "-1")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Nil(t, cfg.Temperature)
	assert.Nil(t, cfg.Completion().Temperature)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{"QUILL_MAX_TOKENS", "lots"},
		{"QUILL_MAX_TOKENS", "0"},
		{"QUILL_TEMPERATURE", "warm"},
		{"QUILL_TIMEOUT", "soon"},
		{"QUILL_TIMEOUT", "-3s"},
	}
	for _, tt := range tests {
		t.Run(tt.env+"="+tt.value, func(t *testing.T) {
			v := newViper(t)
			t.Setenv(tt.env, tt.value)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = \"from-file\"\nmax_tokens = 128\ntimeout = \"1m\"\n"), 0o644))

	v := newViper(t)
	v.Set(KeyConfig, path)
	t.Setenv("QUILL_MAX_TOKENS", "256")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Model)
	assert.Equal(t, 256, cfg.MaxTokens)
	assert.Equal(t, time.Minute, cfg.Timeout)
}

func TestLoadMissingConfigFile(t *testing.T) {
	v := newViper(t)
	v.Set(KeyConfig, filepath.Join(t.TempDir(), "nope.toml"))
	_, err := Load(v)
	assert.Error(t, err)
}

func TestCompletionConfig(t *testing.T) {
	temp := 0.5
	cfg := Config{APIKey: "k", APIURL: "u", Model: "m", MaxTokens: 9, Temperature: &temp, Timeout: time.Second}
	assert.Equal(t, completion.Config{
		APIURL: "u", APIKey: "k", Model: "m", MaxTokens: 9, Temperature: &temp, Timeout: time.Second,
	}, cfg.Completion())
}
