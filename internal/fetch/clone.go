package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// RepoRef mirrors the AnalysisJob.repo_ref payload: a remote URL plus
// either a branch (full_scan) or a base/head commit pair with optional PR
// metadata (pr_scan).
type RepoRef struct {
	URL        string
	Branch     string
	HeadCommit string
	BaseCommit string
	PRNumber   int
}

// IsPR reports whether this ref describes a pull-request scan.
func (r RepoRef) IsPR() bool { return r.PRNumber > 0 }

// Fetcher is the Repository Fetcher.
type Fetcher struct {
	gitBinary string
}

func NewFetcher() *Fetcher {
	return &Fetcher{gitBinary: "git"}
}

// Fetch clones ref into a fresh Scratch directory at the requested
// commit/branch. The caller must Release the returned Scratch on
// every exit path. On error Fetch returns no Scratch: it has already
// removed the directory it created, so nothing is left behind.
func (f *Fetcher) Fetch(ctx context.Context, jobID string, ref RepoRef) (*Scratch, error) {
	scratch, err := NewScratch(jobID)
	if err != nil {
		return nil, errDiskFull(err)
	}

	if ref.IsPR() {
		if err := f.fetchPR(ctx, scratch.Dir, ref); err != nil {
			scratch.Release()
			return nil, err
		}
		return scratch, nil
	}

	if err := f.fetchBranch(ctx, scratch.Dir, ref); err != nil {
		scratch.Release()
		return nil, err
	}
	return scratch, nil
}

func (f *Fetcher) fetchBranch(ctx context.Context, dir string, ref RepoRef) error {
	args := []string{"clone", "--depth", "1", "--single-branch"}
	if ref.Branch != "" {
		args = append(args, "--branch", ref.Branch)
	}
	args = append(args, ref.URL, dir)

	if err := f.run(ctx, "", args...); err != nil {
		return classifyGitError(ref, err)
	}
	return nil
}

// fetchPR clones the repo, then fetches both base and head commits so the
// working tree lands at head with base reachable for diffing.
func (f *Fetcher) fetchPR(ctx context.Context, dir string, ref RepoRef) error {
	if err := f.run(ctx, "", "clone", "--no-single-branch", "--filter=blob:none", ref.URL, dir); err != nil {
		return classifyGitError(ref, err)
	}
	for _, sha := range []string{ref.BaseCommit, ref.HeadCommit} {
		if sha == "" {
			continue
		}
		if err := f.run(ctx, dir, "fetch", "--depth", "1", "origin", sha); err != nil {
			return classifyGitError(ref, err)
		}
	}
	if ref.HeadCommit != "" {
		if err := f.run(ctx, dir, "checkout", "--detach", ref.HeadCommit); err != nil {
			return classifyGitError(ref, err)
		}
	}
	return nil
}

func (f *Fetcher) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, f.gitBinary, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ctx.Err()
		}
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func classifyGitError(ref RepoRef, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Authentication") || strings.Contains(msg, "could not read Username") || strings.Contains(msg, "Permission denied"):
		return errAuthFailed(err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "couldn't find remote ref") || strings.Contains(msg, "Remote branch"):
		return errRefNotFound(ref.Branch, err)
	case strings.Contains(msg, "no space left on device"):
		return errDiskFull(err)
	default:
		return errUnreachableRepo(err)
	}
}
