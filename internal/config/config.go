package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-vault configuration file.
const ConfigFileName = ".vaultsearch.yaml"

// Config represents the complete vaultsearch configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Vault       VaultConfig       `yaml:"vault" json:"vault"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Tokenizer   TokenizerConfig   `yaml:"tokenizer" json:"tokenizer"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// VaultConfig selects which files in the vault are indexed.
type VaultConfig struct {
	// Extensions lists indexed file extensions, with the leading dot.
	Extensions []string `yaml:"extensions" json:"extensions"`
	// Exclude lists gitignore-style patterns. A bare name matches a file
	// or directory at any depth.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// DataDir holds the snapshot database, relative to the vault root.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig carries field weights and query expansion settings.
type SearchConfig struct {
	WeightBasename float64 `yaml:"weight_basename" json:"weight_basename"`
	WeightFolder   float64 `yaml:"weight_folder" json:"weight_folder"`
	WeightAliases  float64 `yaml:"weight_aliases" json:"weight_aliases"`
	WeightHeadings float64 `yaml:"weight_headings" json:"weight_headings"`

	// MinTermLengthForPrefix is the minimum query term length for fuzzy matching.
	MinTermLengthForPrefix int `yaml:"min_term_length_for_prefix" json:"min_term_length_for_prefix"`

	// MinTermLengthForPrefixSearch is the minimum query term length for prefix matching.
	MinTermLengthForPrefixSearch int `yaml:"min_term_length_for_prefix_search" json:"min_term_length_for_prefix_search"`

	// FuzzyProportion scales the edit-distance budget by term length.
	FuzzyProportion float64 `yaml:"fuzzy_proportion" json:"fuzzy_proportion"`

	PrefixDiscount float64 `yaml:"prefix_discount" json:"prefix_discount"`
	FuzzyDiscount  float64 `yaml:"fuzzy_discount" json:"fuzzy_discount"`

	// MaxResults caps vault-wide results.
	MaxResults int `yaml:"max_results" json:"max_results"`
	// MaxLineResults caps in-file line matches.
	MaxLineResults int `yaml:"max_line_results" json:"max_line_results"`
}

// TokenizerConfig controls segmentation and stop words.
type TokenizerConfig struct {
	StopWordsEn bool `yaml:"stop_words_en" json:"stop_words_en"`
	StopWordsZh bool `yaml:"stop_words_zh" json:"stop_words_zh"`
	// SplitHyphen splits Latin runs on '-'.
	SplitHyphen bool `yaml:"split_hyphen" json:"split_hyphen"`
	// AssetsDir holds dict-zh.txt, stop-words-en.txt and stop-words-zh.txt.
	AssetsDir string `yaml:"assets_dir" json:"assets_dir"`
}

// PerformanceConfig configures indexing throughput.
type PerformanceConfig struct {
	ReadWorkers   int    `yaml:"read_workers" json:"read_workers"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
	QueryCache    int    `yaml:"query_cache" json:"query_cache"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Vault: VaultConfig{
			Extensions: []string{".md", ".txt"},
			Exclude:    []string{".obsidian", ".git", ".trash", ".vscode", ".vaultsearch"},
			DataDir:    ".vaultsearch",
		},
		Search: SearchConfig{
			WeightBasename:               3,
			WeightFolder:                 2,
			WeightAliases:                1.15,
			WeightHeadings:               1.27,
			MinTermLengthForPrefix:       3,
			MinTermLengthForPrefixSearch: 2,
			FuzzyProportion:              0.2,
			PrefixDiscount:               0.5,
			FuzzyDiscount:                0.25,
			MaxResults:                   30,
			MaxLineResults:               30,
		},
		Tokenizer: TokenizerConfig{
			StopWordsEn: true,
			StopWordsZh: false,
			SplitHyphen: true,
			AssetsDir:   defaultAssetsDir(),
		},
		Performance: PerformanceConfig{
			ReadWorkers:   runtime.NumCPU(),
			WatchDebounce: "500ms",
			QueryCache:    256,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

func defaultAssetsDir() string {
	return filepath.Join(GetUserConfigDir(), "assets")
}

// GetUserConfigPath returns the path to the user configuration file,
// honouring XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vaultsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "vaultsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "vaultsearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// Load loads configuration for the vault at dir.
// Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/vaultsearch/config.yaml)
//  3. Vault config (<vault>/.vaultsearch.yaml)
//  4. Environment variables (VAULTSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := filepath.Join(dir, ConfigFileName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Booleans cannot be merged by zero value; re-read them from the raw document.
	var raw struct {
		Tokenizer map[string]any `yaml:"tokenizer"`
	}
	_ = yaml.Unmarshal(data, &raw)

	c.mergeWith(&parsed, raw.Tokenizer)
	return nil
}

// mergeWith merges non-zero values from other into c. setBools lists the
// tokenizer keys present in the source document.
func (c *Config) mergeWith(other *Config, setBools map[string]any) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Vault.Extensions) > 0 {
		c.Vault.Extensions = other.Vault.Extensions
	}
	if len(other.Vault.Exclude) > 0 {
		c.Vault.Exclude = other.Vault.Exclude
	}
	if other.Vault.DataDir != "" {
		c.Vault.DataDir = other.Vault.DataDir
	}

	mergeFloat(&c.Search.WeightBasename, other.Search.WeightBasename)
	mergeFloat(&c.Search.WeightFolder, other.Search.WeightFolder)
	mergeFloat(&c.Search.WeightAliases, other.Search.WeightAliases)
	mergeFloat(&c.Search.WeightHeadings, other.Search.WeightHeadings)
	mergeFloat(&c.Search.FuzzyProportion, other.Search.FuzzyProportion)
	mergeFloat(&c.Search.PrefixDiscount, other.Search.PrefixDiscount)
	mergeFloat(&c.Search.FuzzyDiscount, other.Search.FuzzyDiscount)
	mergeInt(&c.Search.MinTermLengthForPrefix, other.Search.MinTermLengthForPrefix)
	mergeInt(&c.Search.MinTermLengthForPrefixSearch, other.Search.MinTermLengthForPrefixSearch)
	mergeInt(&c.Search.MaxResults, other.Search.MaxResults)
	mergeInt(&c.Search.MaxLineResults, other.Search.MaxLineResults)

	if _, ok := setBools["stop_words_en"]; ok {
		c.Tokenizer.StopWordsEn = other.Tokenizer.StopWordsEn
	}
	if _, ok := setBools["stop_words_zh"]; ok {
		c.Tokenizer.StopWordsZh = other.Tokenizer.StopWordsZh
	}
	if _, ok := setBools["split_hyphen"]; ok {
		c.Tokenizer.SplitHyphen = other.Tokenizer.SplitHyphen
	}
	if other.Tokenizer.AssetsDir != "" {
		c.Tokenizer.AssetsDir = other.Tokenizer.AssetsDir
	}

	mergeInt(&c.Performance.ReadWorkers, other.Performance.ReadWorkers)
	mergeInt(&c.Performance.QueryCache, other.Performance.QueryCache)
	if other.Performance.WatchDebounce != "" {
		c.Performance.WatchDebounce = other.Performance.WatchDebounce
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

func mergeFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VAULTSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("VAULTSEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("VAULTSEARCH_ASSETS_DIR"); v != "" {
		c.Tokenizer.AssetsDir = v
	}
	if v := os.Getenv("VAULTSEARCH_DEBOUNCE"); v != "" {
		c.Performance.WatchDebounce = v
	}
	if v := os.Getenv("VAULTSEARCH_STOP_WORDS_ZH"); v != "" {
		c.Tokenizer.StopWordsZh = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	weights := map[string]float64{
		"weight_basename": c.Search.WeightBasename,
		"weight_folder":   c.Search.WeightFolder,
		"weight_aliases":  c.Search.WeightAliases,
		"weight_headings": c.Search.WeightHeadings,
	}
	for name, w := range weights {
		if w <= 0 {
			return fmt.Errorf("search.%s must be positive, got %f", name, w)
		}
	}

	if c.Search.FuzzyProportion < 0 || c.Search.FuzzyProportion > 1 {
		return fmt.Errorf("search.fuzzy_proportion must be between 0 and 1, got %f", c.Search.FuzzyProportion)
	}
	// Discounts below 1 keep exact > prefix > fuzzy.
	if c.Search.PrefixDiscount <= 0 || c.Search.PrefixDiscount >= 1 {
		return fmt.Errorf("search.prefix_discount must be in (0, 1), got %f", c.Search.PrefixDiscount)
	}
	if c.Search.FuzzyDiscount <= 0 || c.Search.FuzzyDiscount >= c.Search.PrefixDiscount {
		return fmt.Errorf("search.fuzzy_discount must be in (0, prefix_discount), got %f", c.Search.FuzzyDiscount)
	}
	if c.Search.MinTermLengthForPrefix < 1 || c.Search.MinTermLengthForPrefixSearch < 1 {
		return fmt.Errorf("search minimum term lengths must be at least 1")
	}
	if c.Search.MaxResults < 0 || c.Search.MaxLineResults < 0 {
		return fmt.Errorf("search result caps must be non-negative")
	}

	for _, ext := range c.Vault.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("vault.extensions entries must start with '.', got %s", ext)
		}
	}

	if _, err := c.Debounce(); err != nil {
		return fmt.Errorf("performance.watch_debounce: %w", err)
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// Debounce parses the watch debounce duration.
func (c *Config) Debounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Performance.WatchDebounce)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must be non-negative, got %s", d)
	}
	return d, nil
}

// DataPath resolves the snapshot directory for the vault at root.
func (c *Config) DataPath(root string) string {
	if filepath.IsAbs(c.Vault.DataDir) {
		return c.Vault.DataDir
	}
	return filepath.Join(root, c.Vault.DataDir)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
