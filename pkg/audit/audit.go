// Package audit records security relevant actions such as approval decisions.
package audit

import (
	"context"
	"log/slog"
)

// Entry is one audited action on a subject.
type Entry struct {
	Action      string
	SubjectType string
	SubjectID   string
	OldValues   map[string]any
	NewValues   map[string]any
	Metadata    map[string]any
}

// Sink receives audit entries. Implementations must not fail the caller.
type Sink interface {
	Log(ctx context.Context, entry Entry)
}

// SlogSink writes audit entries as structured log records.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With("audit", true)}
}

func (s *SlogSink) Log(ctx context.Context, entry Entry) {
	s.logger.InfoContext(ctx, entry.Action,
		"subject_type", entry.SubjectType,
		"subject_id", entry.SubjectID,
		"old_values", entry.OldValues,
		"new_values", entry.NewValues,
		"metadata", entry.Metadata,
	)
}
