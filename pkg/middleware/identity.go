package middleware

import (
	"strings"

	"creator-ledger/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity headers are injected by the trusted auth layer in front of the ledger.
const (
	HeaderCreatorID = "X-Creator-ID"
	HeaderAdminID   = "X-Admin-ID"
	HeaderRole      = "X-Role"
	HeaderRequestID = "X-Request-ID"
)

const (
	creatorKey   = "ledger.creator_id"
	adminKey     = "ledger.admin_id"
	roleKey      = "ledger.role"
	requestIDKey = "ledger.request_id"
)

var (
	ErrMissingCreator = errutil.Sentinel(errutil.StatusUnauthorized, "MISSING_CREATOR", "creator identity required")
	ErrMissingAdmin   = errutil.Sentinel(errutil.StatusUnauthorized, "MISSING_ADMIN", "admin identity required")
	ErrForbidden      = errutil.Sentinel(errutil.StatusForbidden, "FORBIDDEN", "not allowed to perform this action")
)

// RequestID propagates X-Request-ID, generating one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if v := strings.TrimSpace(c.GetHeader(HeaderCreatorID)); v != "" {
			c.Set(creatorKey, v)
		}
		if v := strings.TrimSpace(c.GetHeader(HeaderAdminID)); v != "" {
			c.Set(adminKey, v)
		}
		if v := strings.TrimSpace(c.GetHeader(HeaderRole)); v != "" {
			c.Set(roleKey, strings.ToLower(v))
		}
		c.Next()
	}
}

func RequireCreator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CreatorID(c) == "" {
			Abort(c, ErrMissingCreator)
			return
		}
		c.Next()
	}
}

func CreatorID(c *gin.Context) string { return c.GetString(creatorKey) }

func AdminID(c *gin.Context) string { return c.GetString(adminKey) }

func Role(c *gin.Context) string { return c.GetString(roleKey) }

func RequestIDFrom(c *gin.Context) string { return c.GetString(requestIDKey) }
