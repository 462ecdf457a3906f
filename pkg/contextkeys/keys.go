package contextkeys

type contextKey string

const (
	UserIDKey      contextKey = "UserID"
	ViewContextKey contextKey = "ViewContext"
	RequestIDKey   contextKey = "RequestID"
)
