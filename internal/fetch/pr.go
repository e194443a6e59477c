package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"
)

// PRMetadata is everything the Context Builder needs for a PR-scan
// job beyond the working tree itself: title, description, author, branch
// names, the unified diff, and changed-file contents.
type PRMetadata struct {
	Title        string
	Description  string
	Author       string
	HeadBranch   string
	BaseBranch   string
	DiffContent  string
	ChangedFiles []ChangedFile
}

// ChangedFile is one file touched by the PR, with its patch hunk and (for
// files still present at head) full content for the formatted-changed-
// files-with-content context variable.
type ChangedFile struct {
	Path    string
	Status  string // "added", "modified", "removed", "renamed"
	Patch   string
	Content string
}

// PRClient fetches pull-request metadata and diffs via the GitHub API,
// rate limited to 1 req/sec to stay well under GitHub's 5,000 req/hour
// budget.
type PRClient struct {
	client      *github.Client
	rateLimiter *rate.Limiter
}

func NewPRClient(token string) *PRClient {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &PRClient{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// FetchPR retrieves PR metadata, the base/head comparison diff, and the
// changed-file list with per-file patches.
func (c *PRClient) FetchPR(ctx context.Context, owner, repo string, number int) (*PRMetadata, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, errUnreachableRepo(fmt.Errorf("fetch PR #%d: %w", number, err))
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	comparison, _, err := c.client.Repositories.CompareCommits(ctx, owner, repo,
		pr.GetBase().GetSHA(), pr.GetHead().GetSHA(), &github.ListOptions{PerPage: 300})
	if err != nil {
		return nil, errUnreachableRepo(fmt.Errorf("compare commits for PR #%d: %w", number, err))
	}

	meta := &PRMetadata{
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		Author:      pr.GetUser().GetLogin(),
		HeadBranch:  pr.GetHead().GetRef(),
		BaseBranch:  pr.GetBase().GetRef(),
		DiffContent: unifiedDiffFromComparison(comparison),
	}
	for _, f := range comparison.Files {
		meta.ChangedFiles = append(meta.ChangedFiles, ChangedFile{
			Path:   f.GetFilename(),
			Status: f.GetStatus(),
			Patch:  f.GetPatch(),
		})
	}
	return meta, nil
}

func unifiedDiffFromComparison(comparison *github.CommitsComparison) string {
	var diff string
	for _, f := range comparison.Files {
		diff += fmt.Sprintf("--- a/%s\n+++ b/%s\n%s\n", f.GetFilename(), f.GetFilename(), f.GetPatch())
	}
	return diff
}
