package ginserver

import (
	"strings"

	gin "github.com/gin-gonic/gin"
)

const (
	actorHeader     = "X-User-ID"
	actorContextKey = "rentfleet.actor"
)

// ActorMiddleware records the caller id forwarded by the gateway. Identity is
// verified upstream; this service only attributes writes to it.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(actorHeader)); id != "" {
			c.Set(actorContextKey, id)
		}
		c.Next()
	}
}

func currentActor(c *gin.Context) (string, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// createdBy prefers the explicit body field and falls back to the caller.
func createdBy(c *gin.Context, fromBody string) string {
	if v := strings.TrimSpace(fromBody); v != "" {
		return v
	}
	id, _ := currentActor(c)
	return id
}
