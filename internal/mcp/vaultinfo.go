package mcp

import (
	"os"
	"path/filepath"
)

// Vault types reported by index_status.
const (
	VaultTypeObsidian = "obsidian"
	VaultTypeFolder   = "folder"
)

// DetectVault describes the vault rooted at root. A root holding an
// .obsidian directory is an Obsidian vault; anything else is a folder.
func DetectVault(root string) VaultInfo {
	info := VaultInfo{
		Name:     filepath.Base(root),
		RootPath: root,
		Type:     VaultTypeFolder,
	}
	if fi, err := os.Stat(filepath.Join(root, ".obsidian")); err == nil && fi.IsDir() {
		info.Type = VaultTypeObsidian
	}
	return info
}
