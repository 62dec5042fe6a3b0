// Package session implements a Redis backed gorilla/sessions store.
//
// The cookie carries only a signed session id; values live in Redis as JSON
// under <prefix><id>. Reading a session never extends its TTL, a session
// that was never given values is never written, and an unmodified session
// is only rewritten when Save is called explicitly.
package session

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix matches the prefix used by connect-redis.
const DefaultKeyPrefix = "sess:"

// cookieField holds cookie metadata inside the stored JSON document.
const cookieField = "cookie"

var (
	// ErrInvalidCookie is returned by Get/New when the cookie fails signature
	// verification. The returned session is a fresh one and remains usable.
	ErrInvalidCookie = errors.New("invalid session cookie")

	sessionIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// Options configures a RedisStore.
type Options struct {
	KeyPrefix string
	MaxAge    time.Duration
	Path      string
	Domain    string
	Secure    bool
	SameSite  http.SameSite
}

// RedisStore implements sessions.Store.
type RedisStore struct {
	client    redis.UniversalClient
	codecs    []securecookie.Codec
	options   sessions.Options
	keyPrefix string
}

var _ sessions.Store = (*RedisStore)(nil)

// NewRedisStore returns a store signing ids with keyPairs (see
// securecookie.CodecsFromPairs). Cookies are always HttpOnly.
func NewRedisStore(client redis.UniversalClient, opts Options, keyPairs ...[]byte) *RedisStore {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	path := opts.Path
	if path == "" {
		path = "/"
	}
	sameSite := opts.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}

	s := &RedisStore{
		client:    client,
		codecs:    securecookie.CodecsFromPairs(keyPairs...),
		keyPrefix: prefix,
		options: sessions.Options{
			Path:     path,
			Domain:   opts.Domain,
			MaxAge:   int(opts.MaxAge / time.Second),
			Secure:   opts.Secure,
			HttpOnly: true,
			SameSite: sameSite,
		},
	}

	// securecookie rejects timestamps older than its own max age (30 days by
	// default), which would silently expire long-lived cookies.
	for _, c := range s.codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(s.options.MaxAge)
		}
	}
	return s
}

// Get returns the session registered for this request, loading it on first
// use.
func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns a session for name, populated from Redis when the request
// carries a valid cookie for a live session.
func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := s.options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.codecs...); err != nil {
		return sess, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}

	found, err := s.load(r.Context(), id, sess)
	if err != nil {
		return sess, err
	}
	if found {
		sess.ID = id
		sess.IsNew = false
	}
	return sess, nil
}

// Save persists sess and writes its cookie. A negative MaxAge destroys the
// session; the expiring cookie is written even when the Redis delete fails.
// A zero MaxAge gives a browser-session cookie and a key without TTL. A
// session without an id and without values is left unsaved.
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	ctx := r.Context()

	if sess.Options.MaxAge < 0 {
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		if sess.ID != "" {
			if err := s.client.Del(ctx, s.key(sess.ID)).Err(); err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}
		}
		return nil
	}

	if sess.ID == "" {
		if len(sess.Values) == 0 {
			return nil
		}
		sess.ID = newID()
	}

	data, err := encode(sess)
	if err != nil {
		return err
	}

	ttl := time.Duration(sess.Options.MaxAge) * time.Second
	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("encoding session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

// Delete removes the session stored under id.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + id
}

func (s *RedisStore) load(ctx context.Context, id string, sess *sessions.Session) (bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading session: %w", err)
	}
	if err := decode(data, sess); err != nil {
		return false, err
	}
	return true, nil
}

func newID() string {
	return strings.ToLower(sessionIDEncoding.EncodeToString(securecookie.GenerateRandomKey(32)))
}

type cookieMeta struct {
	OriginalMaxAge int64  `json:"originalMaxAge"`
	Expires        string `json:"expires,omitempty"`
	HTTPOnly       bool   `json:"httpOnly"`
	Secure         bool   `json:"secure"`
	Path           string `json:"path"`
	SameSite       string `json:"sameSite,omitempty"`
}

func encode(sess *sessions.Session) ([]byte, error) {
	doc := make(map[string]any, len(sess.Values)+1)
	for k, v := range sess.Values {
		ks, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("session value key %v is not a string", k)
		}
		if ks == cookieField {
			return nil, fmt.Errorf("session value key %q is reserved", ks)
		}
		doc[ks] = v
	}

	opts := sess.Options
	meta := cookieMeta{
		OriginalMaxAge: int64(opts.MaxAge) * 1000,
		HTTPOnly:       opts.HttpOnly,
		Secure:         opts.Secure,
		Path:           opts.Path,
		SameSite:       sameSiteName(opts.SameSite),
	}
	if opts.MaxAge > 0 {
		meta.Expires = time.Now().Add(time.Duration(opts.MaxAge) * time.Second).UTC().Format(time.RFC3339)
	}
	doc[cookieField] = meta

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return data, nil
}

func decode(data []byte, sess *sessions.Session) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decoding session: %w", err)
	}
	for k, v := range doc {
		if k == cookieField {
			continue
		}
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				v = i
			} else if f, err := n.Float64(); err == nil {
				v = f
			}
		}
		sess.Values[k] = v
	}
	return nil
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return ""
	}
}
