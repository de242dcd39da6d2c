package contextKey

// Key is the private type for request-context values set by the server
// middleware.
type Key string

const (
	// UserIDKey carries the authenticated account's ID.
	UserIDKey Key = "userID"
	// JwtErrorKey carries a JWT validation error for downstream handlers.
	JwtErrorKey Key = "jwtError"
)
