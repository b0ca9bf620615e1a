package middlewares

import (
	"strconv"

	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware lifts the actor identity set by the upstream gateway
// into the request context so audit rows can record who did what.
// Authentication itself happens before requests reach this service.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if v := c.Request.Header.Get("x-user-id"); v != "" {
			if userId, err := strconv.Atoi(v); err == nil {
				ctx = utils.SetUserIdInContext(ctx, userId)
			}
		}
		if v := c.Request.Header.Get("x-user-name"); v != "" {
			ctx = utils.SetUserNameInContext(ctx, v)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
