package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hostel-concierge/internal/language"
)

func setRequired(t *testing.T) {
	t.Setenv("AWS_STATE_TABLE", "concierge-state")
	t.Setenv("AWS_PARAM_PREFIX", "/hostel-concierge")
	t.Setenv("HOTEL_API_BASE_URL", "https://pms.example.com")
}

func TestLoad_EnvOnlyAppliesDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "concierge-state", cfg.AWS.StateTable)
	require.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	require.Equal(t, 0.7, cfg.OpenAI.Temperature)
	require.Equal(t, 500, cfg.OpenAI.MaxTokens)
	require.Equal(t, 3*time.Minute, GetDuration(cfg.Lock.TTLMs))
	require.Equal(t, 10*time.Second, GetDuration(cfg.Lock.WaitMs))
	require.Equal(t, "/metrics", cfg.Metrics.Path)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, language.Spanish, cfg.DefaultLanguage())
	require.Empty(t, cfg.Redis.Address)
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
aws:
  state_table: from-yaml
  param_prefix: /yaml
hotel_api:
  base_url: https://yaml.example.com
openai:
  model: gpt-4o-mini
redis:
  address: localhost:6379
language:
  default: de
`), 0o600))
	t.Setenv("AWS_STATE_TABLE", "from-env")

	cfg, err := load(dir)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.AWS.StateTable)
	require.Equal(t, "/yaml", cfg.AWS.ParamPrefix)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	require.Equal(t, "localhost:6379", cfg.Redis.Address)
	require.Equal(t, language.German, cfg.DefaultLanguage())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"AWS_STATE_TABLE=dotenv-table\nAWS_PARAM_PREFIX=/dotenv\nHOTEL_API_BASE_URL=http://pms\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("AWS_STATE_TABLE")
		_ = os.Unsetenv("AWS_PARAM_PREFIX")
		_ = os.Unsetenv("HOTEL_API_BASE_URL")
	})

	cfg, err := load(dir)
	require.NoError(t, err)
	require.Equal(t, "dotenv-table", cfg.AWS.StateTable)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"missing table": func(t *testing.T) {
			t.Setenv("AWS_PARAM_PREFIX", "/p")
			t.Setenv("HOTEL_API_BASE_URL", "http://pms")
		},
		"bad language": func(t *testing.T) {
			setRequired(t)
			t.Setenv("LANGUAGE_DEFAULT", "fr")
		},
		"bad temperature": func(t *testing.T) {
			setRequired(t)
			t.Setenv("OPENAI_TEMPERATURE", "3")
		},
		"lock expires before wait": func(t *testing.T) {
			setRequired(t)
			t.Setenv("LOCK_TTL_MS", "5000")
			t.Setenv("LOCK_WAIT_MS", "10000")
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("AWS_STATE_TABLE", "")
			setup(t)
			_, err := load(t.TempDir())
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid configuration")
		})
	}
}
