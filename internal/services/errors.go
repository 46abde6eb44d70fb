package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the pipeline failure taxonomy. The first six are
// required-stage failures and abort the run; ErrPublish and ErrDiagnostic
// are best-effort and never change the run's aggregate status.
var (
	ErrProvisioning    = errors.New("provisioning error")
	ErrPackaging       = errors.New("packaging error")
	ErrVersionMismatch = errors.New("version mismatch")
	ErrShallowHistory  = errors.New("shallow history")
	ErrTestFailure     = errors.New("test failure")
	ErrDocBuild        = errors.New("documentation build error")
	ErrPublish         = errors.New("publish error")
	ErrDiagnostic      = errors.New("diagnostic error")
	ErrConfiguration   = errors.New("configuration error")
	ErrExternalTool    = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Required reports whether the error aborts the run. Best-effort failures
// (publish, diagnostic) are logged but leave the aggregate status untouched.
func Required(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrPublish) && !errors.Is(err, ErrDiagnostic)
}

// Hint returns operator guidance for the error, or "" when the failure is
// self-explanatory. The shallow-history case carries its own hint because the
// remediation (widen the fetch depth) differs from a genuine mis-versioned
// package.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrShallowHistory):
		return "the fetched history does not reach the latest version tag; widen the clone fetch depth"
	case errors.Is(err, ErrVersionMismatch):
		return "installed version disagrees with repository tags; check the package version metadata"
	case errors.Is(err, ErrProvisioning):
		return "a dependency manifest failed to resolve; check manifest constraints and network access"
	case errors.Is(err, ErrPackaging):
		return "the source distribution is incomplete or its metadata is invalid; check the package manifest"
	case errors.Is(err, ErrConfiguration):
		return "fix the configuration file and re-run (see 'strata config validate')"
	default:
		return ""
	}
}

// Message extracts the human-readable portion of a wrapped error, stripping
// the leading sentinel prefix so log lines do not repeat the classification.
func Message(err error) string {
	if err == nil {
		return ""
	}
	text := strings.TrimSpace(err.Error())
	for _, marker := range []error{
		ErrProvisioning, ErrPackaging, ErrVersionMismatch, ErrShallowHistory,
		ErrTestFailure, ErrDocBuild, ErrPublish, ErrDiagnostic,
		ErrConfiguration, ErrExternalTool,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(text, prefix) {
			return strings.TrimPrefix(text, prefix)
		}
	}
	return text
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
