package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graphql-go/graphql"

	"lireddit/server/internal/domain"
	"lireddit/server/internal/store"
)

// MaxPageSize caps the posts query limit.
const MaxPageSize = 50

// PostStore is the persistence PostResolver needs.
type PostStore interface {
	ListPosts(ctx context.Context, limit int, before *time.Time) ([]*domain.Post, error)
	PostByID(ctx context.Context, id int) (*domain.Post, error)
	CreatePost(ctx context.Context, creatorID int, title, text string) (*domain.Post, error)
	UpdatePost(ctx context.Context, id, creatorID int, title, text string) (*domain.Post, error)
	DeletePost(ctx context.Context, id, creatorID int) (bool, error)
	Vote(ctx context.Context, postID, userID, value int) (bool, error)
}

// PostResolver serves the post feed and post mutations.
type PostResolver struct {
	store  PostStore
	events Publisher
	logger *slog.Logger
}

func NewPostResolver(s PostStore, events Publisher, logger *slog.Logger) *PostResolver {
	return &PostResolver{store: s, events: events, logger: logger}
}

func (r *PostResolver) Queries() graphql.Fields {
	return graphql.Fields{
		"posts": &graphql.Field{
			Type: graphql.NewNonNull(paginatedPostsType),
			Args: graphql.FieldConfigArgument{
				"limit":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				"cursor": &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: r.posts,
		},
		"post": &graphql.Field{
			Type: postType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			},
			Resolve: r.post,
		},
	}
}

func (r *PostResolver) Mutations() graphql.Fields {
	return graphql.Fields{
		"createPost": &graphql.Field{
			Type: graphql.NewNonNull(postType),
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(postInputType)},
			},
			Resolve: isAuth(r.createPost),
		},
		"updatePost": &graphql.Field{
			Type: postType,
			Args: graphql.FieldConfigArgument{
				"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				"title": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"text":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: isAuth(r.updatePost),
		},
		"deletePost": &graphql.Field{
			Type: graphql.NewNonNull(graphql.Boolean),
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			},
			Resolve: isAuth(r.deletePost),
		},
		"vote": &graphql.Field{
			Type: graphql.NewNonNull(graphql.Boolean),
			Args: graphql.FieldConfigArgument{
				"postId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				"value":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			},
			Resolve: isAuth(r.vote),
		},
	}
}

func (r *PostResolver) posts(p graphql.ResolveParams) (any, error) {
	limit := min(intArg(p.Args, "limit"), MaxPageSize)
	limit = max(limit, 0)

	var before *time.Time
	if cursor := stringArg(p.Args, "cursor"); cursor != "" {
		t, err := domain.ParseMillis(cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		before = &t
	}

	posts, err := r.store.ListPosts(p.Context, limit+1, before)
	if err != nil {
		return nil, err
	}

	page := &PaginatedPosts{Posts: posts, HasMore: len(posts) == limit+1}
	if page.HasMore {
		page.Posts = posts[:limit]
	}
	if page.Posts == nil {
		page.Posts = []*domain.Post{}
	}
	return page, nil
}

func (r *PostResolver) post(p graphql.ResolveParams) (any, error) {
	post, err := r.store.PostByID(p.Context, intArg(p.Args, "id"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *PostResolver) createPost(p graphql.ResolveParams) (any, error) {
	userID := mustUserID(p)
	input := objectArg(p.Args, "input")

	post, err := r.store.CreatePost(p.Context, userID, stringArg(input, "title"), stringArg(input, "text"))
	if err != nil {
		return nil, err
	}
	publish(p.Context, r.events, r.logger, SubjectPostCreated, PostEvent{PostID: post.ID, UserID: userID})
	return post, nil
}

func (r *PostResolver) updatePost(p graphql.ResolveParams) (any, error) {
	userID := mustUserID(p)

	post, err := r.store.UpdatePost(p.Context,
		intArg(p.Args, "id"), userID, stringArg(p.Args, "title"), stringArg(p.Args, "text"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	publish(p.Context, r.events, r.logger, SubjectPostUpdated, PostEvent{PostID: post.ID, UserID: userID})
	return post, nil
}

// deletePost reports true whether or not a post was removed; deleting a post
// the caller does not own is a no-op.
func (r *PostResolver) deletePost(p graphql.ResolveParams) (any, error) {
	userID := mustUserID(p)
	id := intArg(p.Args, "id")

	deleted, err := r.store.DeletePost(p.Context, id, userID)
	if err != nil {
		return nil, err
	}
	if deleted {
		publish(p.Context, r.events, r.logger, SubjectPostDeleted, PostEvent{PostID: id, UserID: userID})
	}
	return true, nil
}

func (r *PostResolver) vote(p graphql.ResolveParams) (any, error) {
	userID := mustUserID(p)
	postID := intArg(p.Args, "postId")
	value := domain.VoteValue(intArg(p.Args, "value"))

	changed, err := r.store.Vote(p.Context, postID, userID, value)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("post %d not found", postID)
	}
	if err != nil {
		return nil, err
	}
	if changed {
		publish(p.Context, r.events, r.logger, SubjectPostVoted, PostEvent{PostID: postID, UserID: userID, Value: value})
	}
	return true, nil
}
