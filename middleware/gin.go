package middleware

import (
	goGuard "github.com/MrEthical07/goGuard"
	"github.com/gin-gonic/gin"
)

// GinDecisionKey is the gin context key holding the Allow decision.
const GinDecisionKey = "goguard.decision"

// GinGuard is [Guard] for gin routers.
func GinGuard(engine *goGuard.Engine, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ctx := authorize(engine, opts, c.Request)
		if d.Kind != goGuard.Allow {
			deny(c.Writer, c.Request, opts, d)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Request.Header.Set("Authorization", engine.AuthorizationValue(d.Access))
		c.Set(GinDecisionKey, d)
		c.Next()
	}
}
