package logging

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every record logged with a context that carries them.
type LogFields struct {
	RequestID  string
	Tenant     string
	AnalysisID string
	// Component names the emitting part, e.g. "analysis.service".
	Component string
}

// WithLogFields merges fields into the context; non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	return context.WithValue(ctx, logFieldsKey, merge(GetLogFields(ctx), fields))
}

func GetLogFields(ctx context.Context) LogFields {
	if f, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return f
	}
	return LogFields{}
}

func merge(old, new LogFields) LogFields {
	out := old
	if new.RequestID != "" {
		out.RequestID = new.RequestID
	}
	if new.Tenant != "" {
		out.Tenant = new.Tenant
	}
	if new.AnalysisID != "" {
		out.AnalysisID = new.AnalysisID
	}
	if new.Component != "" {
		out.Component = new.Component
	}
	return out
}
