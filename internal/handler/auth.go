package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const userIDKey = "auth.user_id"

// UserAuth trusts the gateway-injected X-User-ID header. The service runs
// behind an authenticating proxy; requests without the header are rejected.
func UserAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			Error(c, http.StatusUnauthorized, "missing or invalid user identity", nil)
			c.Abort()
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func authedUserID(c *gin.Context) uint64 {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uint64); ok {
			return id
		}
	}
	return 0
}
