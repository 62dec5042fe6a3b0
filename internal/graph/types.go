package graph

import (
	"errors"

	"github.com/graphql-go/graphql"

	"lireddit/server/internal/auth"
	"lireddit/server/internal/domain"
	"lireddit/server/internal/store"
)

// UserResponse is the result of mutations that log a user in. Exactly one of
// Errors or User is set.
type UserResponse struct {
	Errors []auth.FieldError `json:"errors"`
	User   *domain.User      `json:"user"`
}

// PaginatedPosts is one page of the post feed.
type PaginatedPosts struct {
	Posts   []*domain.Post `json:"posts"`
	HasMore bool           `json:"hasMore"`
}

func fieldErrors(errs ...auth.FieldError) *UserResponse {
	return &UserResponse{Errors: errs}
}

var fieldErrorType = graphql.NewObject(graphql.ObjectConfig{
	Name: "FieldError",
	Fields: graphql.Fields{
		"field":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"message": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"id":       &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"username": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"email": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.String),
			Description: "Only visible to the user themself; empty otherwise.",
			Resolve: func(p graphql.ResolveParams) (any, error) {
				u := p.Source.(*domain.User)
				if id, ok := FromContext(p.Context).UserID(); ok && id == u.ID {
					return u.Email, nil
				}
				return "", nil
			},
		},
		"createdAt": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return domain.FormatMillis(p.Source.(*domain.User).CreatedAt), nil
			},
		},
		"updatedAt": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return domain.FormatMillis(p.Source.(*domain.User).UpdatedAt), nil
			},
		},
	},
})

var postType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Post",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"title":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"text":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"points":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"creatorId": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"textSnippet": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(*domain.Post).TextSnippet(), nil
			},
		},
		"creator": &graphql.Field{
			Type:    graphql.NewNonNull(userType),
			Resolve: resolveCreator,
		},
		"voteStatus": &graphql.Field{
			Type:        graphql.Int,
			Description: "The viewer's vote on this post: 1, -1 or null.",
			Resolve:     resolveVoteStatus,
		},
		"createdAt": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return domain.FormatMillis(p.Source.(*domain.Post).CreatedAt), nil
			},
		},
		"updatedAt": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return domain.FormatMillis(p.Source.(*domain.Post).UpdatedAt), nil
			},
		},
	},
})

var paginatedPostsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PaginatedPosts",
	Fields: graphql.Fields{
		"posts":   &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(postType)))},
		"hasMore": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
	},
})

var userResponseType = graphql.NewObject(graphql.ObjectConfig{
	Name: "UserResponse",
	Fields: graphql.Fields{
		"errors": &graphql.Field{
			Type: graphql.NewList(graphql.NewNonNull(fieldErrorType)),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				// null rather than [] on success; clients test errors for truthiness.
				if errs := p.Source.(*UserResponse).Errors; len(errs) > 0 {
					return errs, nil
				}
				return nil, nil
			},
		},
		"user": &graphql.Field{
			Type: userType,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				if u := p.Source.(*UserResponse).User; u != nil {
					return u, nil
				}
				return nil, nil
			},
		},
	},
})

var postInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "PostInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"title": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"text":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
	},
})

var usernamePasswordInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "UsernamePasswordInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"username": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"email":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"password": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
	},
})

// resolveCreator goes through the request's user loader so that the
// creators of a page of posts are fetched with one query.
func resolveCreator(p graphql.ResolveParams) (any, error) {
	post := p.Source.(*domain.Post)
	rc := FromContext(p.Context)
	if rc == nil || rc.Loaders == nil {
		return nil, errors.New("user loader unavailable")
	}
	thunk := rc.Loaders.Users.Load(p.Context, post.CreatorID)
	return func() (any, error) {
		u, err := thunk()
		if err != nil {
			return nil, err
		}
		return u, nil
	}, nil
}

func resolveVoteStatus(p graphql.ResolveParams) (any, error) {
	post := p.Source.(*domain.Post)
	rc := FromContext(p.Context)
	userID, ok := rc.UserID()
	if !ok || rc.Loaders == nil {
		return nil, nil
	}
	thunk := rc.Loaders.Updoots.Load(p.Context, store.UpdootKey{PostID: post.ID, UserID: userID})
	return func() (any, error) {
		u, err := thunk()
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, nil
		}
		return u.Value, nil
	}, nil
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func intArg(args map[string]any, name string) int {
	n, _ := args[name].(int)
	return n
}

func objectArg(args map[string]any, name string) map[string]any {
	m, _ := args[name].(map[string]any)
	return m
}
