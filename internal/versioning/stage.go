package versioning

import (
	"context"
	"strings"
)

// Stage selects which snapshot of a versioned record is read
type Stage int

const (
	Live Stage = iota
	Draft
)

// String returns the stage name
func (s Stage) String() string {
	if s == Draft {
		return "draft"
	}
	return "live"
}

// ParseStage parses a stage name. "stage" is accepted as an alias for draft.
func ParseStage(name string) (Stage, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "live":
		return Live, true
	case "draft", "stage":
		return Draft, true
	default:
		return Live, false
	}
}

// stageContextKey is the context key for the requested stage.
type stageContextKey struct{}

// WithStage stores the requested stage in context.
func WithStage(ctx context.Context, stage Stage) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, stageContextKey{}, stage)
}

// StageFromContext returns the stage stored in context, defaulting to Live.
func StageFromContext(ctx context.Context) Stage {
	if ctx == nil {
		return Live
	}
	stage, ok := ctx.Value(stageContextKey{}).(Stage)
	if !ok {
		return Live
	}
	return stage
}
