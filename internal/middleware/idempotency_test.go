package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matatu/internal/domain"
)

type staticTokens map[string]domain.Principal

func (s staticTokens) Parse(token string) (domain.Principal, error) {
	p, ok := s[token]
	if !ok {
		return domain.Principal{}, errors.New("bad token")
	}
	return p, nil
}

func newIdempotentRouter(t *testing.T, status int, calls *int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := staticTokens{
		"tok-a": {UserID: "user-a", Role: domain.RoleConductor},
		"tok-b": {UserID: "user-b", Role: domain.RoleConductor},
	}

	r := gin.New()
	r.Use(AuthMiddleware(tokens), IdempotencyMiddleware(client))
	r.POST("/things", func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"n": *calls, "user": PrincipalFrom(c).UserID})
	})
	r.GET("/things", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"n": *calls})
	})
	return r
}

func send(r *gin.Engine, method, token, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/things", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+token)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysForSameUser(t *testing.T) {
	calls := 0
	r := newIdempotentRouter(t, http.StatusCreated, &calls)

	first := send(r, http.MethodPost, "tok-a", "k1")
	second := send(r, http.MethodPost, "tok-a", "k1")

	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, 1, calls)
}

func TestIdempotency_KeysAreScopedPerUser(t *testing.T) {
	calls := 0
	r := newIdempotentRouter(t, http.StatusCreated, &calls)

	send(r, http.MethodPost, "tok-a", "k1")
	w := send(r, http.MethodPost, "tok-b", "k1")

	assert.Empty(t, w.Header().Get("Idempotent-Replay"))
	assert.Contains(t, w.Body.String(), "user-b")
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ServerErrorsAreNotCached(t *testing.T) {
	calls := 0
	r := newIdempotentRouter(t, http.StatusBadGateway, &calls)

	send(r, http.MethodPost, "tok-a", "k1")
	w := send(r, http.MethodPost, "tok-a", "k1")

	assert.Empty(t, w.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_IgnoresReadsAndMissingKey(t *testing.T) {
	calls := 0
	r := newIdempotentRouter(t, http.StatusCreated, &calls)

	send(r, http.MethodGet, "tok-a", "k1")
	send(r, http.MethodGet, "tok-a", "k1")
	send(r, http.MethodPost, "tok-a", "")
	send(r, http.MethodPost, "tok-a", "")

	assert.Equal(t, 4, calls)
}

func TestAuthMiddleware_RejectsBadToken(t *testing.T) {
	calls := 0
	r := newIdempotentRouter(t, http.StatusCreated, &calls)

	w := send(r, http.MethodPost, "tok-unknown", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, calls)
}
