// Package identity carries the acting user through context. The domain
// services never consult a global current user; every mutating call stamps
// recordedBy/assignedBy from the actor it is handed.
package identity

import (
	"context"
	"strings"
)

// Actor identifies who performed an operation.
type Actor struct {
	ID   string
	Name string
	Role string
}

func (a Actor) IsZero() bool {
	return strings.TrimSpace(a.ID) == "" && strings.TrimSpace(a.Name) == ""
}

type contextKey string

const (
	actorKey     contextKey = "identity.actor"
	requestIDKey contextKey = "identity.request_id"
	ipAddressKey contextKey = "identity.ip_address"
	userAgentKey contextKey = "identity.user_agent"
)

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey).(Actor)
	if !ok || actor.IsZero() {
		return Actor{}, false
	}
	return actor, true
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey, strings.TrimSpace(ip))
}

func IPAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(ipAddressKey).(string)
	return value
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, strings.TrimSpace(ua))
}

func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userAgentKey).(string)
	return value
}
