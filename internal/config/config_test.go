package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config lookup at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 3.0, cfg.Search.WeightBasename)
	assert.Equal(t, 2.0, cfg.Search.WeightFolder)
	assert.Equal(t, 1.15, cfg.Search.WeightAliases)
	assert.Equal(t, 1.27, cfg.Search.WeightHeadings)
	assert.Equal(t, 3, cfg.Search.MinTermLengthForPrefix)
	assert.Equal(t, 2, cfg.Search.MinTermLengthForPrefixSearch)
	assert.Equal(t, 0.2, cfg.Search.FuzzyProportion)
	assert.Equal(t, 30, cfg.Search.MaxResults)

	assert.True(t, cfg.Tokenizer.StopWordsEn)
	assert.False(t, cfg.Tokenizer.StopWordsZh)
	assert.True(t, cfg.Tokenizer.SplitHyphen)

	assert.Equal(t, []string{".md", ".txt"}, cfg.Vault.Extensions)
	assert.Contains(t, cfg.Vault.Exclude, ".obsidian")
	assert.Contains(t, cfg.Vault.Exclude, ".git")

	assert.Equal(t, runtime.NumCPU(), cfg.Performance.ReadWorkers)
	assert.Equal(t, "500ms", cfg.Performance.WatchDebounce)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles_UsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_VaultConfigOverridesUserConfig(t *testing.T) {
	// Given: a user config and a vault config that disagree
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "vaultsearch"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "vaultsearch", "config.yaml"), []byte(`
search:
  max_results: 10
  weight_folder: 4
tokenizer:
  stop_words_zh: true
`), 0o644))

	vault := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(vault, ConfigFileName), []byte(`
search:
  max_results: 50
tokenizer:
  stop_words_en: false
  split_hyphen: false
`), 0o644))

	// When: loading
	cfg, err := Load(vault)

	// Then: vault wins where set, user config fills the rest
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, 4.0, cfg.Search.WeightFolder)
	assert.True(t, cfg.Tokenizer.StopWordsZh)
	assert.False(t, cfg.Tokenizer.StopWordsEn)
	assert.False(t, cfg.Tokenizer.SplitHyphen)
	assert.Equal(t, 3.0, cfg.Search.WeightBasename)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("VAULTSEARCH_MAX_RESULTS", "7")
	t.Setenv("VAULTSEARCH_LOG_LEVEL", "debug")
	t.Setenv("VAULTSEARCH_ASSETS_DIR", "/opt/assets")
	t.Setenv("VAULTSEARCH_DEBOUNCE", "2s")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.MaxResults)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/opt/assets", cfg.Tokenizer.AssetsDir)
	d, err := cfg.Debounce()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	isolate(t)
	vault := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(vault, ConfigFileName), []byte("search: [unclosed"), 0o644))

	_, err := Load(vault)

	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero weight", func(c *Config) { c.Search.WeightBasename = 0 }},
		{"fuzzy proportion above one", func(c *Config) { c.Search.FuzzyProportion = 1.5 }},
		{"prefix discount not below one", func(c *Config) { c.Search.PrefixDiscount = 1 }},
		{"fuzzy discount above prefix", func(c *Config) { c.Search.FuzzyDiscount = 0.6 }},
		{"extension without dot", func(c *Config) { c.Vault.Extensions = []string{"md"} }},
		{"bad debounce", func(c *Config) { c.Performance.WatchDebounce = "soon" }},
		{"bad transport", func(c *Config) { c.Server.Transport = "sse" }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDataPath(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, filepath.Join("/vault", ".vaultsearch"), cfg.DataPath("/vault"))

	cfg.Vault.DataDir = "/var/lib/vs"
	assert.Equal(t, "/var/lib/vs", cfg.DataPath("/vault"))
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	isolate(t)
	vault := t.TempDir()
	cfg := NewConfig()
	cfg.Search.MaxResults = 12

	require.NoError(t, cfg.WriteYAML(filepath.Join(vault, ConfigFileName)))
	loaded, err := Load(vault)

	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Search.MaxResults)
}
