package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	s, err := NewSQLiteStore(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SaveAndGetRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req := &AnalysisRequest{
		RequestID:   "req-1",
		JobID:       "job-1",
		Kind:        "full_scan",
		ProjectID:   "proj-1",
		Status:      StatusPending,
		RequestedAt: time.Now(),
	}
	require.NoError(t, s.SaveRequest(ctx, req))

	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, StatusPending, got.Status)

	_, err = s.GetRequest(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpdateRequestStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req := &AnalysisRequest{RequestID: "req-2", JobID: "job-2", Kind: "pr_scan", ProjectID: "proj-1", Status: StatusPending, RequestedAt: time.Now()}
	require.NoError(t, s.SaveRequest(ctx, req))

	require.NoError(t, s.UpdateRequestStatus(ctx, "req-2", StatusFailed, "repo unreachable"))

	got, err := s.GetRequest(ctx, "req-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "repo unreachable", got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)

	err = s.UpdateRequestStatus(ctx, "missing", StatusFailed, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveAndListFindings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req := &AnalysisRequest{RequestID: "req-3", JobID: "job-3", Kind: "full_scan", ProjectID: "proj-1", Status: StatusAnalyzing, RequestedAt: time.Now()}
	require.NoError(t, s.SaveRequest(ctx, req))

	findings := []Finding{
		{RequestID: "req-3", FilePath: "a.py", Severity: SeverityWarning, Category: "Code Quality", Message: "unused import"},
		{RequestID: "req-3", FilePath: "b.py", Severity: SeverityError, Category: "Correctness", Message: "nil deref risk"},
	}
	require.NoError(t, s.SaveFindings(ctx, findings))
	require.NoError(t, s.SaveFindings(ctx, nil)) // no-op on empty slice

	got, err := s.ListFindings(ctx, "req-3", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.py", got[0].FilePath)
	assert.Equal(t, SeverityError, got[1].Severity)
}

func TestSQLiteStore_RawFallbackFinding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req := &AnalysisRequest{RequestID: "req-4", JobID: "job-4", Kind: "full_scan", ProjectID: "proj-1", Status: StatusAnalyzing, RequestedAt: time.Now()}
	require.NoError(t, s.SaveRequest(ctx, req))

	require.NoError(t, s.SaveFindings(ctx, []Finding{{
		RequestID:     "req-4",
		FilePath:      RawFindingFilePath,
		Severity:      SeverityInfo,
		RawLLMContent: "here is some unparseable reply",
	}}))

	got, err := s.ListFindings(ctx, "req-4", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, RawFindingFilePath, got[0].FilePath)
	assert.NotEmpty(t, got[0].RawLLMContent)
}
