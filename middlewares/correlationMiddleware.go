package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smartbillpro/billing_backend/appctx"
)

// CorrelationMiddleware attaches a correlation id to every request context,
// preferring one supplied by the caller.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(appctx.Set(c.Request.Context(), appctx.ContextKeyCorrelationId, cid))
		c.Header("x-correlation-id", cid)
		c.Next()
	}
}
