package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sitelane/materialflow/internal/identity"
)

const (
	headerActorID   = "X-Actor-Id"
	headerActorName = "X-Actor-Name"
	headerActorRole = "X-Actor-Role"
	headerRequestID = "X-Request-Id"
)

// ActorMiddleware lifts the caller's identity headers into the request
// context. Authentication happens upstream at the gateway; by the time a
// request lands here the headers are trusted.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		actor := identity.Actor{
			ID:   strings.TrimSpace(c.GetHeader(headerActorID)),
			Name: strings.TrimSpace(c.GetHeader(headerActorName)),
			Role: strings.TrimSpace(c.GetHeader(headerActorRole)),
		}
		if !actor.IsZero() {
			ctx = identity.WithActor(ctx, actor)
		}

		if requestID := c.GetHeader(headerRequestID); requestID != "" {
			ctx = identity.WithRequestID(ctx, requestID)
		}
		ctx = identity.WithIPAddress(ctx, c.ClientIP())
		ctx = identity.WithUserAgent(ctx, c.Request.UserAgent())

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ActorRequired rejects mutating requests that arrive without an actor.
// Every write is attributed; an anonymous write is a client bug.
func ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := identity.ActorFromContext(c.Request.Context()); !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
