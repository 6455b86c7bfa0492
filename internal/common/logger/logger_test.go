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

func TestNewWithLevel(t *testing.T) {
	tests := []struct {
		env, level string
		want       zapcore.Level
	}{
		{"production", "", zapcore.InfoLevel},
		{"development", "", zapcore.DebugLevel},
		{"production", "warn", zapcore.WarnLevel},
		{"dev", "error", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		log := NewWithLevel(tt.env, tt.level)
		require.NotNil(t, log)
		assert.True(t, log.Core().Enabled(tt.want), "env=%s level=%s", tt.env, tt.level)
		if tt.want > zapcore.DebugLevel {
			assert.False(t, log.Core().Enabled(tt.want-1), "env=%s level=%s", tt.env, tt.level)
		}
	}
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-1")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/bad", "/boom"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
}

func TestAuditLogger_LogLoginDecision(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	audit := NewAuditLogger(zap.New(core))

	adaptive := 0.5
	audit.LogLoginDecision("bob", "10.0.0.1", "block", 0.9, &adaptive)
	audit.LogLoginDecision("alice", "192.168.0.1", "allow", 0.1, nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "auth.login.block", fields["event_type"])
	assert.Equal(t, "blocked", fields["status"])
	assert.Equal(t, "audit", fields["log_type"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "allowed", entries[1].ContextMap()["status"])
}

func TestAuditLogger_LogModelUpdate(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	audit := NewAuditLogger(zap.New(core))

	audit.LogModelUpdate("alice", "u-1", false, "model corrupted")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "model.update.rejected", fields["event_type"])
	assert.Equal(t, "u-1", fields["resource_id"])
	assert.Equal(t, "model corrupted", fields["reason"])
}
