package services

import (
	"errors"
	"fmt"
	"strings"
)

// Job failure markers. Every error that leaves a pipeline stage wraps exactly
// one of these so the user-facing reply and the persisted error kind can be
// derived with errors.Is.
var (
	ErrBlockedContent       = errors.New("blocked content")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrDurationExceeded     = errors.New("duration exceeded")
	ErrSizeExceeded         = errors.New("size exceeded")
	ErrUnsupportedSource    = errors.New("unsupported source")
	ErrPrivateOrUnavailable = errors.New("private or unavailable")
	ErrExternalTool         = errors.New("external tool error")
	ErrTimeout              = errors.New("timeout")
	ErrInsufficientBonus    = errors.New("insufficient bonus")
	ErrDeliveryFailure      = errors.New("delivery failure")
)

// Ambient markers shared with storage and configuration code.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// DurationLimitError reports content longer than the free-tier ceiling.
type DurationLimitError struct {
	Limit   int
	Seconds int
}

func (e *DurationLimitError) Error() string {
	return fmt.Sprintf("duration %ds exceeds limit %ds", e.Seconds, e.Limit)
}

func (e *DurationLimitError) Unwrap() error { return ErrDurationExceeded }

// QuotaError reports an exhausted daily allowance.
type QuotaError struct {
	Limit int
	Used  int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily limit %d reached (%d used)", e.Limit, e.Used)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// SizeLimitError reports an artifact larger than the delivery ceiling.
type SizeLimitError struct {
	Limit int64
	Size  int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("artifact size %d exceeds limit %d", e.Size, e.Limit)
}

func (e *SizeLimitError) Unwrap() error { return ErrSizeExceeded }

var kindOrder = []struct {
	marker error
	kind   string
}{
	{ErrBlockedContent, "blocked_content"},
	{ErrQuotaExceeded, "quota_exceeded"},
	{ErrDurationExceeded, "duration_exceeded"},
	{ErrSizeExceeded, "size_exceeded"},
	{ErrUnsupportedSource, "unsupported_source"},
	{ErrPrivateOrUnavailable, "private_or_unavailable"},
	{ErrTimeout, "timeout"},
	{ErrInsufficientBonus, "insufficient_bonus"},
	{ErrDeliveryFailure, "delivery_failure"},
	{ErrExternalTool, "external_tool_failure"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrTransient, "transient"},
}

// Kind returns a stable snake_case name for the first marker err wraps, or
// "internal" when none matches. Nil yields "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range kindOrder {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	return "internal"
}

// IsPolicyDenial reports whether err is an expected refusal rather than a fault.
func IsPolicyDenial(err error) bool {
	switch Kind(err) {
	case "blocked_content", "quota_exceeded", "duration_exceeded", "size_exceeded", "insufficient_bonus":
		return true
	default:
		return false
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
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
