package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/vaultsearch/internal/config"
	"github.com/Aman-CERP/vaultsearch/internal/highlight"
	"github.com/Aman-CERP/vaultsearch/internal/index"
	"github.com/Aman-CERP/vaultsearch/internal/query"
	"github.com/Aman-CERP/vaultsearch/internal/store"
	"github.com/Aman-CERP/vaultsearch/internal/tokenizer"
	"github.com/Aman-CERP/vaultsearch/internal/vault"
)

// SnapshotFile is the snapshot database name inside the data directory.
const SnapshotFile = "index.db"

// BuildOptions adjust Build.
type BuildOptions struct {
	// Ephemeral keeps the snapshot in memory only.
	Ephemeral bool
}

// Build constructs a Service for the vault at root from cfg. The index is
// empty until Open.
func Build(root string, cfg *config.Config, opts BuildOptions) (*Service, error) {
	v, err := vault.New(root, cfg.Vault, cfg.Performance.ReadWorkers)
	if err != nil {
		return nil, err
	}

	assets, err := tokenizer.LoadAssets(cfg.Tokenizer.AssetsDir)
	if err != nil {
		// Whatever loaded is still used.
		slog.Warn("tokenizer_assets_incomplete", slog.String("error", err.Error()))
	}
	tcfg := TokenizerConfig(cfg.Tokenizer)
	tok := tokenizer.New(tcfg, assets)

	path := ""
	if !opts.Ephemeral {
		path = filepath.Join(cfg.DataPath(v.Root()), SnapshotFile)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	return NewService(Dependencies{
		Vault:       v,
		Index:       index.New(tok, IndexOptions(cfg.Search)),
		Processor:   query.NewProcessor(tok, cfg.Performance.QueryCache),
		Highlighter: highlight.New(highlight.DefaultOptions()),
		Store:       st,
	}, Config{
		MaxResults:     cfg.Search.MaxResults,
		MaxLineResults: cfg.Search.MaxLineResults,
		Fingerprint:    Fingerprint(tcfg, assets),
		Degraded:       tok.Degraded(),
	})
}

// TokenizerConfig maps the tokenizer section of the configuration.
func TokenizerConfig(c config.TokenizerConfig) tokenizer.Config {
	return tokenizer.Config{
		StopWordsEn: c.StopWordsEn,
		StopWordsZh: c.StopWordsZh,
		SplitHyphen: c.SplitHyphen,
	}
}

// IndexOptions maps the search section of the configuration.
func IndexOptions(c config.SearchConfig) index.Options {
	return index.Options{
		Weights: index.DocumentWeight{
			index.FieldBasename: c.WeightBasename,
			index.FieldFolder:   c.WeightFolder,
			index.FieldAliases:  c.WeightAliases,
			index.FieldHeadings: c.WeightHeadings,
		},
		MinTermLengthForPrefix:       c.MinTermLengthForPrefix,
		MinTermLengthForPrefixSearch: c.MinTermLengthForPrefixSearch,
		FuzzyProportion:              c.FuzzyProportion,
		PrefixDiscount:               c.PrefixDiscount,
		FuzzyDiscount:                c.FuzzyDiscount,
	}
}

// Fingerprint hashes everything that changes how documents tokenize.
// Scoring settings are excluded since they apply at query time.
func Fingerprint(cfg tokenizer.Config, assets tokenizer.Assets) string {
	h := sha256.New()
	fmt.Fprintf(h, "en=%t zh=%t hyphen=%t\n", cfg.StopWordsEn, cfg.StopWordsZh, cfg.SplitHyphen)
	fmt.Fprintf(h, "dict=%d:", len(assets.Dictionary))
	h.Write(assets.Dictionary)
	fmt.Fprintf(h, "\nstop-en=%s\nstop-zh=%s\n",
		strings.Join(assets.StopWordsEn, ","), strings.Join(assets.StopWordsZh, ","))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
