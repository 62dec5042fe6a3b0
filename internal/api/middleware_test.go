package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lireddit/server/internal/metrics"
	"lireddit/server/internal/session"
)

const testCookie = "qid"

func newSessionStore(t *testing.T) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewRedisStore(client, session.Options{MaxAge: time.Hour}, []byte("middleware-test-secret")), mr
}

// sessionEngine mounts the Session middleware in front of two handlers:
// /login stores a user id, /whoami reports it.
func sessionEngine(store *session.RedisStore) *gin.Engine {
	engine := gin.New()
	engine.Use(Session(store, testCookie, noopLogger()))
	engine.POST("/login", func(c *gin.Context) {
		sess := session.FromContext(c.Request.Context())
		session.SetUserID(sess, 42)
		if err := sess.Save(c.Request, c.Writer); err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	engine.GET("/whoami", func(c *gin.Context) {
		sess := session.FromContext(c.Request.Context())
		if sess == nil {
			c.JSON(http.StatusOK, gin.H{"session": false})
			return
		}
		id, ok := session.UserID(sess)
		c.JSON(http.StatusOK, gin.H{"session": true, "userId": id, "loggedIn": ok})
	})
	return engine
}

func whoami(t *testing.T, engine *gin.Engine, cookies ...*http.Cookie) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestSessionMiddleware_AnonymousRequestGetsSession(t *testing.T) {
	t.Parallel()
	store, mr := newSessionStore(t)
	engine := sessionEngine(store)

	body := whoami(t, engine)
	assert.Equal(t, true, body["session"])
	assert.Equal(t, false, body["loggedIn"])
	assert.Empty(t, mr.Keys())
}

func TestSessionMiddleware_CookieRoundTrip(t *testing.T) {
	t.Parallel()
	store, mr := newSessionStore(t)
	engine := sessionEngine(store)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Len(t, mr.Keys(), 1)

	body := whoami(t, engine, cookies[0])
	assert.Equal(t, true, body["loggedIn"])
	assert.Equal(t, float64(42), body["userId"])
}

func TestSessionMiddleware_TamperedCookieIsAnonymous(t *testing.T) {
	t.Parallel()
	store, _ := newSessionStore(t)
	engine := sessionEngine(store)

	body := whoami(t, engine, &http.Cookie{Name: testCookie, Value: "forged"})
	assert.Equal(t, true, body["session"])
	assert.Equal(t, false, body["loggedIn"])
}

func TestSessionMiddleware_StoreDownIsAnonymous(t *testing.T) {
	t.Parallel()
	store, mr := newSessionStore(t)
	engine := sessionEngine(store)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookie := w.Result().Cookies()[0]

	mr.Close()

	body := whoami(t, engine, cookie)
	assert.Equal(t, true, body["session"])
	assert.Equal(t, false, body["loggedIn"])
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	limiter, err := NewRateLimiter(0.001, 2, 10)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(RateLimit(limiter))
	engine.POST("/graphql", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(metrics.RateLimited)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.RateLimited)-before, 1.0)

	// A different client is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.RemoteAddr = "192.0.2.11:1234"
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(RequestLogger(noopLogger()))
	engine.GET("/teapot", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
