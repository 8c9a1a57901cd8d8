package logging

import (
	"context"
	"log/slog"
)

// FieldRunID tags every record written by one daemon process. The log file is
// shared across restarts, so run_id is how a single run is picked out of it.
const FieldRunID = "run_id"

// runIDHandler stamps run_id at the top level of every record, including
// records logged through a group.
type runIDHandler struct {
	base  slog.Handler
	runID string
}

func withRunID(base slog.Handler, runID string) slog.Handler {
	switch {
	case base == nil:
		return NoopHandler{}
	case runID == "":
		return base
	}
	return &runIDHandler{base: base, runID: runID}
}

func (h *runIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *runIDHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldRunID, h.runID))
	return h.base.Handle(ctx, record)
}

func (h *runIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runIDHandler{base: h.base.WithAttrs(attrs), runID: h.runID}
}

// WithGroup bakes run_id into the base before opening the group so it is not
// nested under the group name.
func (h *runIDHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.base.WithAttrs([]slog.Attr{slog.String(FieldRunID, h.runID)}).WithGroup(name)
}
