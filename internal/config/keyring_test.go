package config

import (
	"os"
	"testing"
)

func TestKeyringManager_SaveAndGetAPIKey(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping test")
	}
	defer km.DeleteAPIKey(KeyringOpenAIItem)

	testKey := "sk-test123456789"
	if err := km.SaveAPIKey(KeyringOpenAIItem, testKey); err != nil {
		t.Fatalf("save: %v", err)
	}

	retrieved, err := km.GetAPIKey(KeyringOpenAIItem)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if retrieved != testKey {
		t.Errorf("expected %s, got %s", testKey, retrieved)
	}
}

func TestKeyringManager_DeleteAPIKey(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping test")
	}

	testKey := "sk-test-delete-123"
	if err := km.SaveAPIKey(KeyringOpenAIItem, testKey); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := km.DeleteAPIKey(KeyringOpenAIItem); err != nil {
		t.Fatalf("delete: %v", err)
	}

	retrieved, err := km.GetAPIKey(KeyringOpenAIItem)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if retrieved != "" {
		t.Errorf("expected empty key after deletion, got %s", retrieved)
	}
}

func TestKeyringManager_GetAPIKey_NotFound(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping test")
	}
	km.DeleteAPIKey(KeyringOpenAIItem)

	retrieved, err := km.GetAPIKey(KeyringOpenAIItem)
	if err != nil {
		t.Fatalf("expected no error for missing key, got: %v", err)
	}
	if retrieved != "" {
		t.Errorf("expected empty string, got: %s", retrieved)
	}
}

func TestKeyringManager_SaveAPIKey_EmptyKey(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping test")
	}
	if err := km.SaveAPIKey(KeyringOpenAIItem, ""); err == nil {
		t.Error("expected error when saving empty credential")
	}
}

func TestKeyringManager_IsAvailable(t *testing.T) {
	km := NewKeyringManager()
	available := km.IsAvailable()
	t.Logf("keychain available: %v", available)
}

func TestGetAPIKeySource_EnvironmentVariable(t *testing.T) {
	km := NewKeyringManager()
	cfg := Default()

	testKey := "sk-env-test-123"
	os.Setenv("OPENAI_API_KEY", testKey)
	defer os.Unsetenv("OPENAI_API_KEY")

	sourceInfo := km.GetAPIKeySource(cfg)
	if sourceInfo.Source != "env" {
		t.Errorf("expected source 'env', got '%s'", sourceInfo.Source)
	}
	if !sourceInfo.Secure {
		t.Error("expected env var source to be marked as secure")
	}
}

func TestGetAPIKeySource_Keychain(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping test")
	}
	cfg := Default()
	os.Unsetenv("OPENAI_API_KEY")

	testKey := "sk-keychain-test-123"
	if err := km.SaveAPIKey(KeyringOpenAIItem, testKey); err != nil {
		t.Fatalf("save: %v", err)
	}
	defer km.DeleteAPIKey(KeyringOpenAIItem)

	sourceInfo := km.GetAPIKeySource(cfg)
	if sourceInfo.Source != "keychain" {
		t.Errorf("expected source 'keychain', got '%s'", sourceInfo.Source)
	}
	if !sourceInfo.Secure {
		t.Error("expected keychain source to be marked as secure")
	}
}

func TestGetAPIKeySource_ConfigFile(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping test")
	}
	cfg := Default()
	cfg.LLM.OpenAIKey = "sk-config-test-123"

	os.Unsetenv("OPENAI_API_KEY")
	km.DeleteAPIKey(KeyringOpenAIItem)

	sourceInfo := km.GetAPIKeySource(cfg)
	if sourceInfo.Source != "config" {
		t.Errorf("expected source 'config', got '%s'", sourceInfo.Source)
	}
	if sourceInfo.Secure {
		t.Error("expected config file source to be marked as insecure")
	}
}

func TestGetAPIKeySource_None(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping test")
	}
	cfg := Default()

	os.Unsetenv("OPENAI_API_KEY")
	km.DeleteAPIKey(KeyringOpenAIItem)
	cfg.LLM.OpenAIKey = ""

	sourceInfo := km.GetAPIKeySource(cfg)
	if sourceInfo.Source != "none" {
		t.Errorf("expected source 'none', got '%s'", sourceInfo.Source)
	}
	if sourceInfo.Secure {
		t.Error("expected none source to be marked as insecure")
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard key", "sk-proj-1234567890abcdefg", "sk-proj...defg"},
		{"empty key", "", "(not set)"},
		{"short key", "sk-test", "***"},
		{"exact 12 chars", "sk-test12345", "sk-test...2345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MaskAPIKey(tt.input)
			if result != tt.expected {
				t.Errorf("MaskAPIKey(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestKeyringManager_RoundTrip(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping test")
	}
	km.DeleteAPIKey(KeyringOpenAIItem)

	keys := []string{"sk-round-trip-1", "sk-round-trip-2", "sk-round-trip-3"}
	for _, key := range keys {
		if err := km.SaveAPIKey(KeyringOpenAIItem, key); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
		retrieved, err := km.GetAPIKey(KeyringOpenAIItem)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if retrieved != key {
			t.Errorf("round trip failed: expected %s, got %s", key, retrieved)
		}
	}

	km.DeleteAPIKey(KeyringOpenAIItem)
}

func TestKeyringManager_DeleteNonExistentKey(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping test")
	}
	km.DeleteAPIKey(KeyringOpenAIItem)
	if err := km.DeleteAPIKey(KeyringOpenAIItem); err != nil {
		t.Errorf("expected no error deleting a non-existent item, got: %v", err)
	}
}

func TestKeyringIntegration(t *testing.T) {
	km := NewKeyringManager()
	if !km.IsAvailable() {
		t.Skip("keychain not available, skipping integration test")
	}

	oldEnv := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer func() {
		if oldEnv != "" {
			os.Setenv("OPENAI_API_KEY", oldEnv)
		}
	}()

	km.DeleteAPIKey(KeyringOpenAIItem)
	defer km.DeleteAPIKey(KeyringOpenAIItem)

	cfg := Default()

	if src := km.GetAPIKeySource(cfg); src.Source != "none" {
		t.Errorf("step 1: expected 'none', got '%s'", src.Source)
	}

	testKey := "sk-integration-test-key"
	if err := km.SaveAPIKey(KeyringOpenAIItem, testKey); err != nil {
		t.Fatalf("step 2: save: %v", err)
	}

	if src := km.GetAPIKeySource(cfg); src.Source != "keychain" {
		t.Errorf("step 3: expected 'keychain', got '%s'", src.Source)
	}

	os.Setenv("OPENAI_API_KEY", "sk-env-override")
	if src := km.GetAPIKeySource(cfg); src.Source != "env" {
		t.Errorf("step 4: expected 'env', got '%s'", src.Source)
	}
	os.Unsetenv("OPENAI_API_KEY")

	if src := km.GetAPIKeySource(cfg); src.Source != "keychain" {
		t.Errorf("step 5: expected 'keychain', got '%s'", src.Source)
	}

	retrieved, err := km.GetAPIKey(KeyringOpenAIItem)
	if err != nil {
		t.Fatalf("step 6: get: %v", err)
	}
	if retrieved != testKey {
		t.Errorf("step 6: expected %s, got %s", testKey, retrieved)
	}

	if err := km.DeleteAPIKey(KeyringOpenAIItem); err != nil {
		t.Fatalf("step 7: delete: %v", err)
	}

	if src := km.GetAPIKeySource(cfg); src.Source != "none" {
		t.Errorf("step 8: expected 'none', got '%s'", src.Source)
	}
}
