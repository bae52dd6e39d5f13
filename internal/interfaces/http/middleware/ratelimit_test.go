package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	assert.Equal(t, 3, rl.Remaining("till-1"))
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("till-1"), "request %d", i)
	}
	assert.False(t, rl.Allow("till-1"))
	assert.Equal(t, 0, rl.Remaining("till-1"))

	assert.True(t, rl.Allow("till-2"), "buckets are per key")
	assert.Equal(t, 3, rl.Limit())
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(2, 100*time.Millisecond)
	defer rl.Stop()

	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	time.Sleep(120 * time.Millisecond)
	assert.True(t, rl.Allow("k"))
}

func TestNewRateLimiter_ClampsArguments(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	defer rl.Stop()

	assert.Equal(t, 1, rl.Limit())
	assert.Equal(t, time.Minute, rl.window)
	rl.Stop()
}

func TestRateLimit_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	router := gin.New()
	router.Use(RateLimit(rl))
	router.POST("/api/v1/sales", func(c *gin.Context) { c.Status(http.StatusCreated) })

	post := func(terminal string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
		req.RemoteAddr = "10.0.0.5:4321"
		if terminal != "" {
			req.Header.Set(HeaderTerminalID, terminal)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post("till-1")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusCreated, post("till-1").Code)

	w = post("till-1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), dto.ErrCodeRateLimited)

	assert.Equal(t, http.StatusCreated, post("till-2").Code, "another till has its own bucket")
	assert.Equal(t, http.StatusCreated, post("").Code, "untagged requests fall back to the client IP")
	assert.Equal(t, http.StatusCreated, post("bad id!").Code, "malformed terminal IDs fall back to the client IP")
	assert.Equal(t, http.StatusTooManyRequests, post("").Code)
}

func TestRateLimitByKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	router := gin.New()
	router.Use(RateLimitByKey(rl, func(c *gin.Context) string { return c.Query("store") }))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/x?store=a", http.StatusOK},
		{"/x?store=a", http.StatusTooManyRequests},
		{"/x?store=b", http.StatusOK},
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.want, w.Code, tc.path)
	}
}
