package graph

import (
	"errors"

	"github.com/graphql-go/graphql"
)

var (
	// ErrNotAuthenticated is returned by fields wrapped with isAuth when the
	// session has no user.
	ErrNotAuthenticated = errors.New("not authenticated")

	errNoSession = errors.New("no session attached to request")
)

// isAuth rejects the field unless the request carries a logged-in session.
func isAuth(next graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		if _, ok := FromContext(p.Context).UserID(); !ok {
			return nil, ErrNotAuthenticated
		}
		return next(p)
	}
}

// mustUserID returns the logged-in user id. Only valid inside isAuth.
func mustUserID(p graphql.ResolveParams) int {
	id, _ := FromContext(p.Context).UserID()
	return id
}
