package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/novaguard-ai/ckg-pipeline/internal/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// CredentialManager resolves provider credentials through a priority chain:
// environment variable → keychain → config file → interactive prompt.
type CredentialManager struct {
	mode       DeploymentMode
	keyring    *KeyringManager
	configPath string
}

// Credentials holds the subset of credentials that can be persisted to a
// plaintext config file when the OS keychain is unavailable.
type Credentials struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GitHubToken     string `yaml:"github_token"`
}

func NewCredentialManager() *CredentialManager {
	mode := DetectMode()
	homeDir, _ := os.UserHomeDir()
	configPath := filepath.Join(homeDir, ".config", "ckg-pipeline", "config.yaml")
	return &CredentialManager{mode: mode, keyring: NewKeyringManager(), configPath: configPath}
}

// GetOpenAIAPIKey resolves the OpenAI credential used by the LLM Client's
// hosted-A provider.
func (cm *CredentialManager) GetOpenAIAPIKey() (string, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}
	if cm.keyring.IsAvailable() {
		if key, err := cm.keyring.GetAPIKey(KeyringOpenAIItem); err == nil && key != "" {
			return key, nil
		}
	}
	if creds, err := cm.loadConfigFile(); err == nil && creds.OpenAIAPIKey != "" {
		return creds.OpenAIAPIKey, nil
	}
	if cm.mode.AllowsInteractivePrompts() && isInteractive() {
		fmt.Println("\nOpenAI API key not found.")
		fmt.Println("Create one at: https://platform.openai.com/api-keys")
		return cm.promptForAPIKey("Enter OpenAI API Key: ", "sk-", KeyringOpenAIItem)
	}
	return "", errors.ConfigErrorf(
		"OPENAI_API_KEY not found. Set it via:\n"+
			"  1. Environment variable: export OPENAI_API_KEY=sk-...\n"+
			"  2. Run: ckgctl configure\n"+
			"  3. Config file: %s", cm.configPath)
}

// GetAnthropicAPIKey resolves the Anthropic credential used by the LLM
// Client's hosted-B provider.
func (cm *CredentialManager) GetAnthropicAPIKey() (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	if cm.keyring.IsAvailable() {
		if key, err := cm.keyring.GetAPIKey(KeyringAnthropicItem); err == nil && key != "" {
			return key, nil
		}
	}
	if creds, err := cm.loadConfigFile(); err == nil && creds.AnthropicAPIKey != "" {
		return creds.AnthropicAPIKey, nil
	}
	return "", nil
}

// GetGitHubToken resolves the optional GitHub token used by the Repository
// Fetcher's pr_scan path.
func (cm *CredentialManager) GetGitHubToken() (string, error) {
	for _, envVar := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := os.Getenv(envVar); token != "" {
			return token, nil
		}
	}
	if cm.keyring.IsAvailable() {
		if token, err := cm.keyring.GetAPIKey(KeyringGitHubItem); err == nil && token != "" {
			return token, nil
		}
	}
	if creds, err := cm.loadConfigFile(); err == nil && creds.GitHubToken != "" {
		return creds.GitHubToken, nil
	}
	if cm.mode.AllowsInteractivePrompts() && isInteractive() {
		fmt.Println("\nGitHub token not found (optional; needed for private repos / higher rate limits).")
		fmt.Print("Enter GitHub token (or press Enter to skip): ")
		token, _ := cm.readSecurely()
		if token != "" && cm.keyring.IsAvailable() {
			cm.keyring.SaveAPIKey(KeyringGitHubItem, token)
		}
		return token, nil
	}
	return "", nil
}

// SaveCredentials persists credentials to the keychain when available,
// falling back to a restrictively-permissioned config file.
func (cm *CredentialManager) SaveCredentials(creds Credentials) error {
	if cm.keyring.IsAvailable() {
		if creds.OpenAIAPIKey != "" {
			if err := cm.keyring.SaveAPIKey(KeyringOpenAIItem, creds.OpenAIAPIKey); err != nil {
				return errors.Wrap(err, errors.KindConfig, errors.SeverityHigh, "save OpenAI key to keychain")
			}
		}
		if creds.AnthropicAPIKey != "" {
			if err := cm.keyring.SaveAPIKey(KeyringAnthropicItem, creds.AnthropicAPIKey); err != nil {
				return errors.Wrap(err, errors.KindConfig, errors.SeverityHigh, "save Anthropic key to keychain")
			}
		}
		if creds.GitHubToken != "" {
			if err := cm.keyring.SaveAPIKey(KeyringGitHubItem, creds.GitHubToken); err != nil {
				return errors.Wrap(err, errors.KindConfig, errors.SeverityHigh, "save GitHub token to keychain")
			}
		}
		return nil
	}
	return cm.saveConfigFile(creds)
}

func (cm *CredentialManager) loadConfigFile() (*Credentials, error) {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (cm *CredentialManager) saveConfigFile(creds Credentials) error {
	dir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(cm.configPath, data, 0600)
}

func (cm *CredentialManager) promptForAPIKey(prompt, expectedPrefix, keyringItem string) (string, error) {
	fmt.Print(prompt)
	key, err := cm.readSecurely()
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", errors.New(errors.KindConfig, errors.SeverityCritical, "API key is required")
	}
	if expectedPrefix != "" && !strings.HasPrefix(key, expectedPrefix) {
		return "", errors.New(errors.KindInvalidInput, errors.SeverityHigh, fmt.Sprintf("API key should start with %q", expectedPrefix))
	}
	if cm.keyring.IsAvailable() {
		if err := cm.keyring.SaveAPIKey(keyringItem, key); err == nil {
			fmt.Println("saved to keychain")
		}
	} else {
		creds := Credentials{}
		if keyringItem == KeyringOpenAIItem {
			creds.OpenAIAPIKey = key
		} else {
			creds.AnthropicAPIKey = key
		}
		if err := cm.saveConfigFile(creds); err == nil {
			fmt.Printf("saved to %s\n", cm.configPath)
		}
	}
	return key, nil
}

func (cm *CredentialManager) readSecurely() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func isInteractive() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

func (cm *CredentialManager) GetMode() DeploymentMode { return cm.mode }
func (cm *CredentialManager) GetConfigPath() string   { return cm.configPath }

// HasCredentials reports whether any OpenAI credential source is configured.
func (cm *CredentialManager) HasCredentials() bool {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return true
	}
	if cm.keyring.IsAvailable() {
		if key, err := cm.keyring.GetAPIKey(KeyringOpenAIItem); err == nil && key != "" {
			return true
		}
	}
	if creds, err := cm.loadConfigFile(); err == nil && creds.OpenAIAPIKey != "" {
		return true
	}
	return false
}
