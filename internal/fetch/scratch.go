// Package fetch implements the Repository Fetcher: clone-or-update a
// remote VCS repo to a scratch directory at a specific commit/branch, with
// scoped acquisition and guaranteed release of the scratch directory on
// every exit path, including cancellation. Directories are ephemeral and
// job-scoped; nothing fetched here outlives the job.
package fetch

import (
	"fmt"
	"os"
)

// Scratch is a handle to a job-scoped working directory. Release must run
// on every exit path; the worker always does this through defer
// immediately after acquisition succeeds.
type Scratch struct {
	Dir      string
	released bool
}

// NewScratch creates a fresh temporary directory for one job. The caller
// owns cleanup via Release.
func NewScratch(jobID string) (*Scratch, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("ckg-job-%s-", jobID))
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return &Scratch{Dir: dir}, nil
}

// Release removes the scratch directory. Safe to call more than once;
// idempotent after the first successful removal.
func (s *Scratch) Release() error {
	if s.released {
		return nil
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return err
	}
	s.released = true
	return nil
}
