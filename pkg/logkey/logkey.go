package logkey

// Attribute keys shared by every slog call so log lines stay greppable.
const (
	TraceID = "TRACE ID"
	ERROR   = "ERROR"
	OrderID = "ORDER ID"
	UserID  = "USER ID"
	Actor   = "ACTOR"
	Status  = "STATUS"
	Topic   = "TOPIC"
)
