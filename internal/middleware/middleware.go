package middleware

// contextKey is a private type for context values set by this package,
// so keys cannot collide with other packages.
type contextKey string
