package fetch

import pipelineerrors "github.com/novaguard-ai/ckg-pipeline/internal/errors"

// The four fetch error classes. Re-enqueueing the
// job is the only recovery path — there is no internal retry loop for
// these, since a bad ref or missing auth won't resolve itself on a second
// attempt a moment later.
func errUnreachableRepo(cause error) error {
	return (&pipelineerrors.Error{Kind: pipelineerrors.KindTransient, Message: "unreachable_repo", Cause: cause, Retryable: true}).WithContext("fetch_error", "unreachable_repo")
}

func errAuthFailed(cause error) error {
	return (&pipelineerrors.Error{Kind: pipelineerrors.KindInvalidInput, Message: "auth_failed", Cause: cause, Retryable: false}).WithContext("fetch_error", "auth_failed")
}

func errRefNotFound(ref string, cause error) error {
	return (&pipelineerrors.Error{Kind: pipelineerrors.KindInvalidInput, Message: "ref_not_found", Cause: cause, Retryable: false}).WithContext("ref", ref)
}

func errDiskFull(cause error) error {
	return (&pipelineerrors.Error{Kind: pipelineerrors.KindTransient, Message: "disk_full", Cause: cause, Retryable: true})
}
