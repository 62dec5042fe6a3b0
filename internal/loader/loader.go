// Package loader provides the per-request batching loaders used by GraphQL
// field resolvers.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"lireddit/server/internal/domain"
	"lireddit/server/internal/store"
)

// DefaultWait is how long a loader collects keys before issuing a batch.
const DefaultWait = 2 * time.Millisecond

type UserSource interface {
	UsersByIDs(ctx context.Context, ids []int) ([]*domain.User, error)
}

type UpdootSource interface {
	UpdootsByKeys(ctx context.Context, keys []store.UpdootKey) ([]*domain.Updoot, error)
}

// Loaders bundles the loaders for one request. Values are cached for the
// lifetime of the Loaders, so a new one must be built per request.
type Loaders struct {
	Users   *dataloader.Loader[int, *domain.User]
	Updoots *dataloader.Loader[store.UpdootKey, *domain.Updoot]
}

func New(users UserSource, updoots UpdootSource) *Loaders {
	return &Loaders{
		Users: dataloader.NewBatchedLoader(
			userBatch(users),
			dataloader.WithWait[int, *domain.User](DefaultWait),
		),
		Updoots: dataloader.NewBatchedLoader(
			updootBatch(updoots),
			dataloader.WithWait[store.UpdootKey, *domain.Updoot](DefaultWait),
		),
	}
}

// userBatch resolves ids in key order. An id with no row fails on its own
// with store.ErrNotFound.
func userBatch(src UserSource) dataloader.BatchFunc[int, *domain.User] {
	return func(ctx context.Context, ids []int) []*dataloader.Result[*domain.User] {
		results := make([]*dataloader.Result[*domain.User], len(ids))

		users, err := src.UsersByIDs(ctx, ids)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[*domain.User]{Error: err}
			}
			return results
		}

		byID := make(map[int]*domain.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}
		for i, id := range ids {
			if u, ok := byID[id]; ok {
				results[i] = &dataloader.Result[*domain.User]{Data: u}
				continue
			}
			results[i] = &dataloader.Result[*domain.User]{
				Error: fmt.Errorf("user %d: %w", id, store.ErrNotFound),
			}
		}
		return results
	}
}

// updootBatch resolves keys in order; a key with no vote yields nil.
func updootBatch(src UpdootSource) dataloader.BatchFunc[store.UpdootKey, *domain.Updoot] {
	return func(ctx context.Context, keys []store.UpdootKey) []*dataloader.Result[*domain.Updoot] {
		results := make([]*dataloader.Result[*domain.Updoot], len(keys))

		updoots, err := src.UpdootsByKeys(ctx, keys)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[*domain.Updoot]{Error: err}
			}
			return results
		}

		byKey := make(map[store.UpdootKey]*domain.Updoot, len(updoots))
		for _, u := range updoots {
			byKey[store.UpdootKey{PostID: u.PostID, UserID: u.UserID}] = u
		}
		for i, k := range keys {
			results[i] = &dataloader.Result[*domain.Updoot]{Data: byKey[k]}
		}
		return results
	}
}
