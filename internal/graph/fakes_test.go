package graph

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"lireddit/server/internal/domain"
	"lireddit/server/internal/store"
)

// memStore is an in-memory stand-in for store.Store.
type memStore struct {
	mu         sync.Mutex
	now        time.Time
	users      map[int]*domain.User
	posts      map[int]*domain.Post
	updoots    map[store.UpdootKey]int
	nextUser   int
	nextPost   int
	batchCalls int
	lastLimit  int
}

func newMemStore() *memStore {
	return &memStore{
		now:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:   map[int]*domain.User{},
		posts:   map[int]*domain.Post{},
		updoots: map[store.UpdootKey]int{},
	}
}

func (m *memStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *memStore) CreateUser(_ context.Context, username, email, hash string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return nil, store.ErrDuplicate
		}
	}
	m.nextUser++
	now := m.tick()
	u := &domain.User{ID: m.nextUser, Username: username, Email: email, Password: hash, CreatedAt: now, UpdatedAt: now}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memStore) findUser(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UserByID(_ context.Context, id int) (*domain.User, error) {
	return m.findUser(func(u *domain.User) bool { return u.ID == id })
}

func (m *memStore) UserByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.findUser(func(u *domain.User) bool { return u.Username == username })
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.findUser(func(u *domain.User) bool { return u.Email == email })
}

func (m *memStore) UpdatePassword(_ context.Context, id int, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = hash
	return nil
}

func (m *memStore) deleteUser(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *memStore) UsersByIDs(_ context.Context, ids []int) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	var out []*domain.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) UpdootsByKeys(_ context.Context, keys []store.UpdootKey) ([]*domain.Updoot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Updoot
	for _, k := range keys {
		if v, ok := m.updoots[k]; ok {
			out = append(out, &domain.Updoot{UserID: k.UserID, PostID: k.PostID, Value: v})
		}
	}
	return out, nil
}

func (m *memStore) ListPosts(_ context.Context, limit int, before *time.Time) ([]*domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	var all []*domain.Post
	for _, p := range m.posts {
		if before != nil && !p.CreatedAt.Before(*before) {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) PostByID(_ context.Context, id int) (*domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreatePost(_ context.Context, creatorID int, title, text string) (*domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPost++
	now := m.tick()
	p := &domain.Post{ID: m.nextPost, Title: title, Text: text, CreatorID: creatorID, CreatedAt: now, UpdatedAt: now}
	m.posts[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdatePost(_ context.Context, id, creatorID int, title, text string) (*domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.CreatorID != creatorID {
		return nil, store.ErrNotFound
	}
	p.Title, p.Text, p.UpdatedAt = title, text, m.tick()
	cp := *p
	return &cp, nil
}

func (m *memStore) DeletePost(_ context.Context, id, creatorID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.CreatorID != creatorID {
		return false, nil
	}
	delete(m.posts, id)
	for k := range m.updoots {
		if k.PostID == id {
			delete(m.updoots, k)
		}
	}
	return true, nil
}

func (m *memStore) Vote(_ context.Context, postID, userID, value int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return false, store.ErrNotFound
	}
	k := store.UpdootKey{PostID: postID, UserID: userID}
	current, voted := m.updoots[k]
	switch {
	case !voted:
		p.Points += value
	case current == value:
		return false, nil
	default:
		p.Points += 2 * value
	}
	m.updoots[k] = value
	return true, nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: html})
	return nil
}

func (f *fakeMailer) last() (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMail{}, false
	}
	return f.sent[len(f.sent)-1], true
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return f.err
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.subjects)
}

// resetToken pulls the token out of a reset mail body.
func resetToken(body string) string {
	const marker = "/change-password/"
	i := strings.Index(body, marker)
	if i < 0 {
		return ""
	}
	rest := body[i+len(marker):]
	if j := strings.IndexByte(rest, '"'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
