package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrResourceMissing   = errors.New("resource missing")
	ErrEffectApplication = errors.New("effect application error")
	ErrEncoding          = errors.New("encoding error")
	ErrConfiguration     = errors.New("configuration error")
	ErrExternalTool      = errors.New("external tool error")
	ErrCanceled          = errors.New("render canceled")
)

// Severity classifies how far a failure propagates.
type Severity string

const (
	// SeverityRecoverable failures stay local to one clip and degrade output.
	SeverityRecoverable Severity = "recoverable"
	// SeverityFatal failures abort the chunk that raised them.
	SeverityFatal Severity = "fatal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
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

// SeverityOf maps an error to its propagation class. Missing resources and
// failed effects are clip-local; everything else aborts the chunk.
func SeverityOf(err error) Severity {
	switch {
	case errors.Is(err, ErrResourceMissing), errors.Is(err, ErrEffectApplication):
		return SeverityRecoverable
	default:
		return SeverityFatal
	}
}

// Kind returns the short taxonomy name used in reports and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrResourceMissing):
		return "resource_missing"
	case errors.Is(err, ErrEffectApplication):
		return "effect_application"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	default:
		return "external_tool"
	}
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
		return "render failure"
	}
	return strings.Join(parts, ": ")
}
