package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Activity struct {
	CreatorID string
	IP        string
	Action    string
	UserAgent string
}

// ActivityRecorder receives creator activity for IP auditing. Implementations
// must not block the request; recording is best-effort.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, a Activity)
}

// TrackActivity reports successful creator requests tagged with action.
func TrackActivity(recorder ActivityRecorder, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if recorder == nil || CreatorID(c) == "" || c.Writer.Status() >= http.StatusInternalServerError {
			return
		}

		recorder.RecordActivity(c.Request.Context(), Activity{
			CreatorID: CreatorID(c),
			IP:        c.ClientIP(),
			Action:    action,
			UserAgent: c.Request.UserAgent(),
		})
	}
}
