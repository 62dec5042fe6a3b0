package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"lireddit/server/internal/domain"
)

const postColumns = `id, title, text, points, creator_id, created_at, updated_at`

// ListPosts returns up to limit posts, newest first. When before is non-nil
// only posts created strictly earlier are returned.
func (s *Store) ListPosts(ctx context.Context, limit int, before *time.Time) ([]*domain.Post, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if before != nil {
		rows, err = s.db.Query(ctx,
			`SELECT `+postColumns+` FROM posts WHERE created_at < $1 ORDER BY created_at DESC LIMIT $2`,
			*before, limit,
		)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	posts, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[domain.Post])
	if err != nil {
		return nil, fmt.Errorf("scanning posts: %w", err)
	}
	return posts, nil
}

func (s *Store) PostByID(ctx context.Context, id int) (*domain.Post, error) {
	rows, err := s.db.Query(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying post: %w", err)
	}
	p, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.Post])
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) CreatePost(ctx context.Context, creatorID int, title, text string) (*domain.Post, error) {
	rows, err := s.db.Query(ctx,
		`INSERT INTO posts (title, text, creator_id) VALUES ($1, $2, $3) RETURNING `+postColumns,
		title, text, creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting post: %w", translate(err))
	}
	p, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.Post])
	if err != nil {
		return nil, fmt.Errorf("inserting post: %w", translate(err))
	}
	return p, nil
}

// UpdatePost rewrites title and text of a post owned by creatorID.
// ErrNotFound covers both a missing post and one owned by someone else.
func (s *Store) UpdatePost(ctx context.Context, id, creatorID int, title, text string) (*domain.Post, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE posts SET title = $1, text = $2, updated_at = now()
		 WHERE id = $3 AND creator_id = $4
		 RETURNING `+postColumns,
		title, text, id, creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}
	p, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.Post])
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// DeletePost removes a post owned by creatorID; its updoots cascade.
// It reports whether a row was deleted.
func (s *Store) DeletePost(ctx context.Context, id, creatorID int) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND creator_id = $2`, id, creatorID)
	if err != nil {
		return false, fmt.Errorf("deleting post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Vote records userID's vote on postID and adjusts the post's points in the
// same transaction. Repeating the current vote is a no-op; switching sides
// moves points by twice the value. It reports whether anything changed.
func (s *Store) Vote(ctx context.Context, postID, userID, value int) (bool, error) {
	value = domain.VoteValue(value)
	changed := false

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx,
			`SELECT value FROM updoots WHERE user_id = $1 AND post_id = $2 FOR UPDATE`,
			userID, postID,
		).Scan(&current)

		var delta int
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if _, err := tx.Exec(ctx,
				`INSERT INTO updoots (user_id, post_id, value) VALUES ($1, $2, $3)`,
				userID, postID, value,
			); err != nil {
				return fmt.Errorf("inserting updoot: %w", translate(err))
			}
			delta = value
		case err != nil:
			return fmt.Errorf("reading updoot: %w", err)
		case current == value:
			return nil
		default:
			if _, err := tx.Exec(ctx,
				`UPDATE updoots SET value = $1 WHERE user_id = $2 AND post_id = $3`,
				value, userID, postID,
			); err != nil {
				return fmt.Errorf("updating updoot: %w", err)
			}
			delta = 2 * value
		}

		tag, err := tx.Exec(ctx, `UPDATE posts SET points = points + $1 WHERE id = $2`, delta, postID)
		if err != nil {
			return fmt.Errorf("updating points: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
