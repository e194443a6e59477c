package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/novaguard-ai/ckg-pipeline/internal/config"
	"github.com/novaguard-ai/ckg-pipeline/internal/queue"
	"github.com/novaguard-ai/ckg-pipeline/internal/worker"
	"github.com/spf13/cobra"
)

var (
	submitKind     string
	submitProject  string
	submitBranch   string
	submitBase     string
	submitHead     string
	submitPRNumber int
	submitOwner    string
	submitRepo     string
	submitProvider string
	submitModel    string
	submitProfile  string
	submitNotes    string
	submitLanguage string
	submitTemp     float64
)

var submitCmd = &cobra.Command{
	Use:   "submit [repository-url]",
	Short: "Enqueue an analysis job",
	Long: `Enqueue a full-branch scan or a pull-request scan for a repository.

Examples:
  ckgctl submit https://github.com/acme/shop --project acme-shop --branch main
  ckgctl submit https://github.com/acme/shop --project acme-shop \
    --kind pr_scan --owner acme --repo shop --pr 412 --base abc123 --head def456
  ckgctl submit https://github.com/acme/shop --project acme-shop \
    --profile security --provider hosted_b`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitKind, "kind", "full_scan", "job kind: full_scan or pr_scan")
	submitCmd.Flags().StringVar(&submitProject, "project", "", "project id (required)")
	submitCmd.Flags().StringVar(&submitBranch, "branch", "main", "branch to scan (full_scan)")
	submitCmd.Flags().StringVar(&submitBase, "base", "", "base commit (pr_scan)")
	submitCmd.Flags().StringVar(&submitHead, "head", "", "head commit (pr_scan)")
	submitCmd.Flags().IntVar(&submitPRNumber, "pr", 0, "pull request number (pr_scan)")
	submitCmd.Flags().StringVar(&submitOwner, "owner", "", "repository owner (pr_scan)")
	submitCmd.Flags().StringVar(&submitRepo, "repo", "", "repository name (pr_scan)")
	submitCmd.Flags().StringVar(&submitProvider, "provider", "", "llm provider: local, hosted_a, or hosted_b (default from config)")
	submitCmd.Flags().StringVar(&submitModel, "model", "", "llm model override")
	submitCmd.Flags().StringVar(&submitProfile, "profile", "", "prompt profile: security, performance, lifecycle, or code_review")
	submitCmd.Flags().StringVar(&submitNotes, "notes", "", "free-form project notes passed to the analysis")
	submitCmd.Flags().StringVar(&submitLanguage, "output-language", "en", "language the findings should be written in")
	submitCmd.Flags().Float64Var(&submitTemp, "temperature", 0, "llm temperature (0 uses the process default)")
	submitCmd.MarkFlagRequired("project")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg.ValidateOrFatal(config.ValidationContextSubmit)

	kind := worker.Kind(submitKind)
	if kind != worker.KindFullScan && kind != worker.KindPRScan {
		return fmt.Errorf("unknown job kind %q", submitKind)
	}
	if kind == worker.KindPRScan && (submitOwner == "" || submitRepo == "" || submitPRNumber == 0) {
		return fmt.Errorf("pr_scan requires --owner, --repo, and --pr")
	}

	provider := submitProvider
	if provider == "" {
		provider = cfg.LLM.DefaultProvider
	}

	job := worker.AnalysisJob{
		JobID:     uuid.NewString(),
		Kind:      kind,
		ProjectID: submitProject,
		RepoRef: worker.RepoRef{
			URL:        args[0],
			Branch:     submitBranch,
			BaseCommit: submitBase,
			HeadCommit: submitHead,
			PRNumber:   submitPRNumber,
			Owner:      submitOwner,
			Repo:       submitRepo,
		},
		RequestedAt: time.Now().UTC(),
		LLMConfig: worker.LLMConfig{
			Provider:    provider,
			Model:       submitModel,
			Temperature: submitTemp,
			Profile:     submitProfile,
		},
		OutputLanguage: submitLanguage,
		ProjectNotes:   submitNotes,
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job envelope: %w", err)
	}

	ctx := context.Background()
	q, err := queue.New(ctx, cfg.Queue, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect to queue: %w", err)
	}
	defer q.Close()

	msgID, err := q.Enqueue(ctx, job.ProjectID, payload)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	logger.WithField("message_id", msgID).Debug("envelope enqueued")
	fmt.Printf("Submitted %s job %s for project %s\n", job.Kind, job.JobID, job.ProjectID)
	fmt.Printf("Track it with: ckgctl status %s\n", job.JobID)
	return nil
}
