package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/novaguard-ai/ckg-pipeline/internal/config"
	"github.com/novaguard-ai/ckg-pipeline/internal/store"
	"github.com/spf13/cobra"
)

var (
	findingsLimit  int
	findingsOffset int
	findingsRaw    bool
)

var findingsCmd = &cobra.Command{
	Use:   "findings [job-id]",
	Short: "List the findings of a completed analysis request",
	Args:  cobra.ExactArgs(1),
	RunE:  runFindings,
}

func init() {
	findingsCmd.Flags().IntVar(&findingsLimit, "limit", 50, "maximum findings to print")
	findingsCmd.Flags().IntVar(&findingsOffset, "offset", 0, "findings to skip")
	findingsCmd.Flags().BoolVar(&findingsRaw, "raw", false, "print raw LLM content for fallback rows in full")
}

func runFindings(cmd *cobra.Command, args []string) error {
	cfg.ValidateOrFatal(config.ValidationContextSubmit)

	ctx := context.Background()
	s, err := store.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("connect to request store: %w", err)
	}
	defer s.Close()

	findings, err := s.ListFindings(ctx, args[0], findingsLimit, findingsOffset)
	if err != nil {
		return fmt.Errorf("list findings for %s: %w", args[0], err)
	}
	if len(findings) == 0 {
		fmt.Println("No findings.")
		return nil
	}

	for _, f := range findings {
		if f.RawLLMContent != "" {
			fmt.Printf("[%s] %s\n", f.Severity, f.FilePath)
			if findingsRaw {
				fmt.Println(f.RawLLMContent)
			} else {
				fmt.Printf("  %s\n", truncateLine(f.RawLLMContent, 200))
				fmt.Println("  (rerun with --raw for the full content)")
			}
			continue
		}
		loc := f.FilePath
		if f.LineStart > 0 {
			loc = fmt.Sprintf("%s:%d-%d", f.FilePath, f.LineStart, f.LineEnd)
		}
		fmt.Printf("[%s] %s (%s)\n", f.Severity, loc, f.Category)
		fmt.Printf("  %s\n", f.Message)
		if f.Suggestion != "" {
			fmt.Printf("  Suggestion: %s\n", f.Suggestion)
		}
	}
	fmt.Printf("\n%d finding(s)\n", len(findings))
	return nil
}

func truncateLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
