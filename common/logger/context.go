package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so business context (conversation_id,
// round_id, etc.) is included in every log statement without threading it by hand.
type LogFields struct {
	ConversationID *int64  // Conversation the work belongs to
	RoundID        *int64  // Round being relayed
	UserID         *int64  // Owning user
	TaskID         *string // Redis stream message ID for title tasks
	Component      string  // Component name (e.g., "assistant.relay.engine")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, incoming LogFields) LogFields {
	result := existing

	if incoming.ConversationID != nil {
		result.ConversationID = incoming.ConversationID
	}
	if incoming.RoundID != nil {
		result.RoundID = incoming.RoundID
	}
	if incoming.UserID != nil {
		result.UserID = incoming.UserID
	}
	if incoming.TaskID != nil {
		result.TaskID = incoming.TaskID
	}
	if incoming.Component != "" {
		result.Component = incoming.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{RoundID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like questions or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
