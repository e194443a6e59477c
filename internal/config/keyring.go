package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name under which credentials are
	// stored in the OS keychain.
	KeyringService = "ckg-pipeline"

	// Keyring item names, one per provider credential the LLM Client
	// or Repository Fetcher can use.
	KeyringOpenAIItem    = "openai-api-key"
	KeyringAnthropicItem = "anthropic-api-key"
	KeyringGeminiItem    = "gemini-api-key"
	KeyringGitHubItem    = "github-token"
)

// KeyringManager handles secure credential storage in the OS keychain.
type KeyringManager struct {
	logger *slog.Logger
}

func NewKeyringManager() *KeyringManager {
	return &KeyringManager{logger: slog.Default().With("component", "keyring")}
}

// SaveAPIKey stores a named credential securely in the OS keychain —
// macOS Keychain, Windows Credential Manager, or Linux Secret Service.
func (km *KeyringManager) SaveAPIKey(item, value string) error {
	if value == "" {
		return fmt.Errorf("credential cannot be empty")
	}
	if err := keyring.Set(KeyringService, item, value); err != nil {
		km.logger.Error("failed to save credential to keychain", "item", item, "error", err)
		return fmt.Errorf("save to OS keychain: %w", err)
	}
	km.logger.Info("credential saved to keychain", "item", item)
	return nil
}

// GetAPIKey retrieves a named credential from the OS keychain. A missing
// item is not an error — it returns an empty string.
func (km *KeyringManager) GetAPIKey(item string) (string, error) {
	value, err := keyring.Get(KeyringService, item)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to read credential from keychain", "item", item, "error", err)
		return "", fmt.Errorf("read from OS keychain: %w", err)
	}
	return value, nil
}

// DeleteAPIKey removes a named credential from the OS keychain.
func (km *KeyringManager) DeleteAPIKey(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete credential from keychain", "item", item, "error", err)
		return fmt.Errorf("delete from OS keychain: %w", err)
	}
	km.logger.Info("credential deleted from keychain", "item", item)
	return nil
}

// IsAvailable reports whether the OS keychain backend is reachable — false
// on headless CI runners where no Secret Service / Credential Manager runs.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "availability-probe")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// KeySourceInfo describes where a given credential is currently sourced
// from.
type KeySourceInfo struct {
	Source      string // "keychain", "config", "env", "env_file", "none"
	Secure      bool
	Recommended string
}

// GetAPIKeySource determines where the OpenAI credential is coming from.
func (km *KeyringManager) GetAPIKeySource(cfg *Config) KeySourceInfo {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return KeySourceInfo{Source: "env", Secure: true, Recommended: "using environment variable"}
	}
	if keychainKey, _ := km.GetAPIKey(KeyringOpenAIItem); keychainKey != "" {
		return KeySourceInfo{Source: "keychain", Secure: true, Recommended: "stored in OS keychain"}
	}
	if cfg.LLM.OpenAIKey != "" {
		return KeySourceInfo{Source: "config", Secure: false, Recommended: "plaintext in config file; consider `ckgctl configure`"}
	}
	if _, err := os.Stat(".env"); err == nil {
		return KeySourceInfo{Source: "env_file", Secure: false, Recommended: "using .env file"}
	}
	return KeySourceInfo{Source: "none", Secure: false, Recommended: "no API key configured; run `ckgctl configure`"}
}

// MaskAPIKey shows only the first 7 and last 4 characters of a credential.
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "(not set)"
	}
	if len(apiKey) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", apiKey[:7], apiKey[len(apiKey)-4:])
}
