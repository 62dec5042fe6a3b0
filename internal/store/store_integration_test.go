package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"lireddit/server/internal/domain"
	"lireddit/server/internal/migrations"
)

const postgresImage = "postgres:16-alpine"

// testDatabaseURL returns LIREDDIT_TEST_DATABASE_URL when set, otherwise the
// URL of a throwaway Postgres container that is removed with the test.
func testDatabaseURL(ctx context.Context, t *testing.T) string {
	t.Helper()

	if url := os.Getenv("LIREDDIT_TEST_DATABASE_URL"); url != "" {
		return url
	}
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "lireddit_test",
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
			},
			// The entrypoint restarts postgres once after initdb.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "starting postgres container")

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/lireddit_test?sslmode=disable", host, port.Port())
}

// openTestStore migrates a fresh database and wipes the tables.
func openTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, testDatabaseURL(ctx, t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.UpPool(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE updoots, posts, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return New(pool), pool
}

func TestIntegration_Users(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "bob", "bob@example.com", "hash")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
	assert.NotZero(t, u.ID)

	_, err = s.CreateUser(ctx, "bob", "other@example.com", "hash")
	assert.ErrorIs(t, err, ErrDuplicate)

	byEmail, err := s.UserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = s.UserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpdatePassword(ctx, u.ID, "new-hash"))
	again, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", again.Password)

	assert.ErrorIs(t, s.UpdatePassword(ctx, 9999, "x"), ErrNotFound)

	users, err := s.UsersByIDs(ctx, []int{u.ID, 9999})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.ID, users[0].ID)
}

func TestIntegration_PostsAndVotes(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, "bob", "bob@example.com", "hash")
	require.NoError(t, err)

	var ids []int
	for _, title := range []string{"first", "second", "third"} {
		p, err := s.CreatePost(ctx, alice.ID, title, "body of "+title)
		require.NoError(t, err)
		ids = append(ids, p.ID)
		time.Sleep(5 * time.Millisecond)
	}

	page, err := s.ListPosts(ctx, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "third", page[0].Title)
	assert.Equal(t, "second", page[1].Title)

	cursor := page[1].CreatedAt
	rest, err := s.ListPosts(ctx, 10, &cursor)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "first", rest[0].Title)

	_, err = s.UpdatePost(ctx, ids[0], bob.ID, "hijack", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	updated, err := s.UpdatePost(ctx, ids[0], alice.ID, "first!", "edited")
	require.NoError(t, err)
	assert.Equal(t, "first!", updated.Title)

	changed, err := s.Vote(ctx, ids[0], bob.ID, 1)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.Vote(ctx, ids[0], bob.ID, 1)
	require.NoError(t, err)
	assert.False(t, changed)
	changed, err = s.Vote(ctx, ids[0], bob.ID, -1)
	require.NoError(t, err)
	assert.True(t, changed)

	p, err := s.PostByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, -1, p.Points)

	updoots, err := s.UpdootsByKeys(ctx, []UpdootKey{
		{PostID: ids[0], UserID: bob.ID},
		{PostID: ids[1], UserID: bob.ID},
	})
	require.NoError(t, err)
	require.Len(t, updoots, 1)
	assert.Equal(t, -1, updoots[0].Value)

	_, err = s.Vote(ctx, 9999, bob.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := s.DeletePost(ctx, ids[0], bob.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	deleted, err = s.DeletePost(ctx, ids[0], alice.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	updoots, err = s.UpdootsByKeys(ctx, []UpdootKey{{PostID: ids[0], UserID: bob.ID}})
	require.NoError(t, err)
	assert.Empty(t, updoots)
}

func TestIntegration_CursorWithinSameMillisecond(t *testing.T) {
	s, pool := openTestStore(t)
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	// Sub-millisecond timestamps that share a millisecond once truncated.
	for _, row := range []struct{ title, at string }{
		{"older", "2024-01-01 00:00:00.100400+00"},
		{"newer", "2024-01-01 00:00:00.100900+00"},
	} {
		_, err := pool.Exec(ctx,
			`INSERT INTO posts (title, text, creator_id, created_at) VALUES ($1, 'body', $2, $3)`,
			row.title, alice.ID, row.at,
		)
		require.NoError(t, err)
	}

	first, err := s.ListPosts(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "newer", first[0].Title)

	// The cursor travels through the API as a millisecond string.
	cursor, err := domain.ParseMillis(domain.FormatMillis(first[0].CreatedAt))
	require.NoError(t, err)

	rest, err := s.ListPosts(ctx, 10, &cursor)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "older", rest[0].Title)
}
