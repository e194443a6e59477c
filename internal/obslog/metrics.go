package obslog

import "time"

// JobMetrics accumulates the counters the worker emits at each state transition and
// at job-terminal time: files processed, entities created, findings by
// severity, elapsed wall time.
type JobMetrics struct {
	JobID              string
	StartedAt          time.Time
	FilesProcessed     int
	EntitiesCreated    int
	UnresolvedRefs     int
	Placeholders       int
	FindingsBySeverity map[string]int
}

// NewJobMetrics starts a metrics accumulator for a job.
func NewJobMetrics(jobID string) *JobMetrics {
	return &JobMetrics{
		JobID:              jobID,
		StartedAt:          time.Now(),
		FindingsBySeverity: make(map[string]int),
	}
}

// RecordFinding increments the counter for a finding's severity.
func (m *JobMetrics) RecordFinding(severity string) {
	m.FindingsBySeverity[severity]++
}

// Emit logs the accumulated counters at job-terminal time.
func (m *JobMetrics) Emit(l *Logger, status string) {
	args := []any{
		"job_id", m.JobID,
		"status", status,
		"files_processed", m.FilesProcessed,
		"entities_created", m.EntitiesCreated,
		"unresolved_refs", m.UnresolvedRefs,
		"placeholders", m.Placeholders,
		"elapsed_ms", time.Since(m.StartedAt).Milliseconds(),
	}
	for severity, count := range m.FindingsBySeverity {
		args = append(args, "findings_"+severity, count)
	}
	if l != nil {
		l.Info("job terminal", args...)
		return
	}
	Info("job terminal", args...)
}
