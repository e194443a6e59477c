package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/novaguard-ai/ckg-pipeline/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactive setup for provider credentials (with OS keychain support)",
	Long: `Store LLM provider keys and the GitHub token securely.

Keys go to the OS keychain (macOS Keychain, Windows Credential Manager,
Linux Secret Service). This command does not write a config file: without
a reachable keychain, storing a key fails. Environment variables always
take precedence over stored values at runtime.`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	fmt.Println("ckg-pipeline credential setup")
	fmt.Println("-----------------------------")
	fmt.Println()

	km := config.NewKeyringManager()
	if km.IsAvailable() {
		fmt.Println("OS keychain detected; keys will be stored securely.")
	} else {
		fmt.Println("No OS keychain available; keys cannot be stored.")
	}
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	entries := []struct {
		label  string
		prompt string
		item   string
	}{
		{"OpenAI API key (hosted_a provider)", "OpenAI API key", config.KeyringOpenAIItem},
		{"Anthropic API key (hosted_b provider)", "Anthropic API key", config.KeyringAnthropicItem},
		{"Gemini API key (embedding-assisted resolution)", "Gemini API key", config.KeyringGeminiItem},
		{"GitHub token (pull-request metadata)", "GitHub token", config.KeyringGitHubItem},
	}

	for _, e := range entries {
		fmt.Printf("Configure %s? [y/N] ", e.label)
		answer, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			continue
		}
		value, err := readSecret(fmt.Sprintf("Enter %s: ", e.prompt))
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Println("Empty value, skipped.")
			continue
		}
		if err := km.SaveAPIKey(e.item, value); err != nil {
			return fmt.Errorf("store %s: %w", e.prompt, err)
		}
		fmt.Printf("Stored %s (%s).\n\n", e.prompt, config.MaskAPIKey(value))
	}

	fmt.Println("Done. Verify your setup with: ckgctl submit --help")
	return nil
}

// readSecret reads a line without echo when stdin is a terminal, falling
// back to plain line reading otherwise (pipes, CI).
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
