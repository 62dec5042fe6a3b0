package session

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
)

// UserIDKey is the session value holding the logged-in user's id.
const UserIDKey = "userId"

// UserID returns the logged-in user's id, if any.
func UserID(sess *sessions.Session) (int, bool) {
	if sess == nil {
		return 0, false
	}
	switch v := sess.Values[UserIDKey].(type) {
	case int:
		return v, v != 0
	case int64:
		return int(v), v != 0
	case float64:
		return int(v), v != 0
	default:
		return 0, false
	}
}

// SetUserID marks sess as logged in as id.
func SetUserID(sess *sessions.Session, id int) {
	sess.Values[UserIDKey] = id
}

// Destroy deletes the session from its store and expires the cookie.
func Destroy(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

type ctxKey struct{}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess *sessions.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session attached by WithSession, or nil.
func FromContext(ctx context.Context) *sessions.Session {
	sess, _ := ctx.Value(ctxKey{}).(*sessions.Session)
	return sess
}
