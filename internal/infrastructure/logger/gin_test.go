package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(l *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("request_id", "req-42") })
	r.Use(Recovery(l), GinMiddleware(l))
	return r
}

func TestGinMiddleware_LevelsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusCreated, zapcore.InfoLevel},
		{http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		core, recorded := observer.New(zapcore.InfoLevel)
		r := newTestRouter(zap.New(core))
		r.POST("/sales", func(c *gin.Context) { c.Status(tt.status) })

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sales?dry=1", nil)
		req.Header.Set(HeaderTerminalID, "till-1")
		r.ServeHTTP(w, req)

		entries := recorded.FilterMessage("HTTP Request").All()
		require.Len(t, entries, 1)
		assert.Equal(t, tt.level, entries[0].Level)
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-42", fields["request_id"])
		assert.Equal(t, "till-1", fields["terminal_id"])
		assert.Equal(t, "/sales", fields["path"])
		assert.Equal(t, "dry=1", fields["query"])
	}
}

func TestGinMiddleware_HandlersSeeContextLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	r := newTestRouter(zap.New(core))
	r.GET("/alerts", func(c *gin.Context) {
		L(c.Request.Context()).Info("evaluating")
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/alerts", nil))

	entries := recorded.FilterMessage("evaluating").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	r := newTestRouter(zap.New(core))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, recorded.FilterMessage("Panic recovered").Len())
}
