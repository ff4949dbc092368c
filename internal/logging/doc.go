// Package logging configures structured slog output for vaultsearch.
// With --debug, JSON logs are written to a size-rotated file under
// ~/.vaultsearch/logs/. In serve mode stderr is left untouched so the MCP
// stdio stream stays clean.
package logging
