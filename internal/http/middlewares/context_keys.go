package middlewares

const (
	CtxRequestID = "request_id"

	ctxUserIDKey = "auth.userID"
	ctxEmailKey  = "auth.email"
	ctxRoleKey   = "auth.role"
	ctxJTIKey    = "auth.jti"
	ctxExpiryKey = "auth.expiresAt"
)
