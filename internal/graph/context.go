package graph

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"lireddit/server/internal/loader"
	"lireddit/server/internal/session"
)

// RequestContext is the per-request state resolvers work with.
type RequestContext struct {
	Request *http.Request
	Writer  http.ResponseWriter
	Session *sessions.Session
	Redis   redis.UniversalClient
	Loaders *loader.Loaders

	start time.Time
}

type ctxKey struct{}

func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the RequestContext for ctx, or nil outside a GraphQL
// request.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(ctxKey{}).(*RequestContext)
	return rc
}

// UserID returns the id of the logged-in user, if any.
func (rc *RequestContext) UserID() (int, bool) {
	if rc == nil {
		return 0, false
	}
	return session.UserID(rc.Session)
}

// saveSession persists the session and writes its cookie. Resolvers call it
// before the response body is written.
func (rc *RequestContext) saveSession() error {
	if rc.Session == nil {
		return errNoSession
	}
	return rc.Session.Save(rc.Request, rc.Writer)
}
