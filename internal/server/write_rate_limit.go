package server

import (
	"github.com/gin-gonic/gin"
	"github.com/sitelane/materialflow/internal/identity"
)

// writeRateLimit throttles a ledger write endpoint through the shared
// redis token buckets. Redis trouble fails open: losing rate limiting is
// better than refusing field crews mid-shift.
func (s *Server) writeRateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		allowed, err := s.writeLimiter.AllowEndpoint(ctx, endpoint)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, "endpoint")
			}
			AbortWithError(c, ErrRateLimited)
			return
		}

		if actor, ok := identity.ActorFromContext(ctx); ok {
			allowed, err = s.writeLimiter.AllowActor(ctx, actor.ID)
			if err != nil {
				c.Next()
				return
			}
			if !allowed {
				if s.obsMetrics != nil {
					s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, "actor")
				}
				AbortWithError(c, ErrRateLimited)
				return
			}
		}

		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		}
		c.Next()
	}
}
