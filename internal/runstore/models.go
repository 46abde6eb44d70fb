package runstore

import (
	"strings"
	"time"
)

// Status represents the aggregate lifecycle of a pipeline run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusSuccess,
	StatusFailure,
}

// Terminal reports whether the status ends the run.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if normalized == status {
			return status, true
		}
	}
	return "", false
}

// Classification distinguishes stages whose failure aborts the run from
// best-effort stages whose failure is only recorded.
type Classification string

const (
	ClassRequired   Classification = "required"
	ClassBestEffort Classification = "best_effort"
)

// StageStatus is the recorded outcome of one stage execution.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageFailure StageStatus = "failure"
	StageSkipped StageStatus = "skipped"
)

// Run represents one pipeline execution for a single matrix entry.
type Run struct {
	ID            string
	PythonVersion string
	EnvName       string
	EnvPrefix     string
	ArtifactPath  string
	// ArtifactDigest is the sha256 of the built source distribution.
	ArtifactDigest string
	CoveragePath   string
	Status         Status
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FinishedAt     *time.Time
}

// SetFailed marks the run failed with the given message.
func (r *Run) SetFailed(message string) {
	r.Status = StatusFailure
	r.ErrorMessage = strings.TrimSpace(message)
}

// StageResult records one stage execution appended to a run.
type StageResult struct {
	RunID          string
	Seq            int
	Name           string
	Classification Classification
	Status         StageStatus
	ErrorMessage   string
	Hint           string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Duration returns the stage's wall-clock execution time.
func (sr StageResult) Duration() time.Duration {
	if sr.FinishedAt.Before(sr.StartedAt) {
		return 0
	}
	return sr.FinishedAt.Sub(sr.StartedAt)
}
