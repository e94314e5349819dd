package auth

// Gin context keys under which the JWT middleware stores verified
// claims for downstream handlers.
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextUserName = "user_name"
)
