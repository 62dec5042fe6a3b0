package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lireddit/server/internal/domain"
)

// UpdootKey identifies one user's vote on one post.
type UpdootKey struct {
	PostID int
	UserID int
}

// UpdootsByKeys returns the updoots that exist among keys, in no particular
// order.
func (s *Store) UpdootsByKeys(ctx context.Context, keys []UpdootKey) ([]*domain.Updoot, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	postIDs := make([]int, len(keys))
	userIDs := make([]int, len(keys))
	for i, k := range keys {
		postIDs[i] = k.PostID
		userIDs[i] = k.UserID
	}

	rows, err := s.db.Query(ctx,
		`SELECT u.user_id, u.post_id, u.value
		 FROM updoots u
		 JOIN unnest($1::int[], $2::int[]) AS k(post_id, user_id)
		   ON u.post_id = k.post_id AND u.user_id = k.user_id`,
		postIDs, userIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("querying updoots: %w", err)
	}
	updoots, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[domain.Updoot])
	if err != nil {
		return nil, fmt.Errorf("scanning updoots: %w", err)
	}
	return updoots, nil
}
