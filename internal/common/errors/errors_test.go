package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNew(t *testing.T) {
	err := New(ErrBadRequest, "Test error", http.StatusBadRequest)

	assert.Equal(t, ErrBadRequest, err.Code)
	assert.Equal(t, "Test error", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Nil(t, err.Err)
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("original error")
	err := Wrap(originalErr, ErrInternal, "Wrapped error", http.StatusInternalServerError)

	assert.Equal(t, ErrInternal, err.Code)
	assert.Equal(t, originalErr, err.Err)
	assert.ErrorIs(t, err, originalErr)
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "Error without details",
			err:      &AppError{Code: ErrBadRequest, Message: "Invalid request"},
			expected: "[BAD_REQUEST] Invalid request",
		},
		{
			name:     "Error with details",
			err:      &AppError{Code: ErrInvalidInput, Message: "Invalid input", Details: "latitude is NaN"},
			expected: "[INVALID_INPUT] Invalid input: latitude is NaN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"unknown user", UnknownUser("mallory"), ErrUnknownUser, http.StatusNotFound},
		{"invalid feature vector", InvalidFeatureVector("missing time_deviation", nil), ErrInvalidFeatureVector, http.StatusBadRequest},
		{"invalid input", InvalidInput("label", "must be in [0,1]"), ErrInvalidInput, http.StatusBadRequest},
		{"model corrupted", ModelCorrupted(errors.New("nan")), ErrModelCorrupted, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.True(t, IsErrorCode(tt.err, tt.code))
			assert.Equal(t, tt.status, GetStatusCode(tt.err))
		})
	}

	assert.Equal(t, "mallory", UnknownUser("mallory").Metadata["user_id"])
	assert.Equal(t, "label", InvalidInput("label", "x").Metadata["field"])
}

func TestIsErrorCode_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("evaluate: %w", UnknownUser("eve"))

	assert.True(t, IsErrorCode(wrapped, ErrUnknownUser))
	assert.False(t, IsErrorCode(wrapped, ErrInvalidInput))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrUnknownUser))
	assert.Equal(t, http.StatusNotFound, GetStatusCode(wrapped))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(errors.New("plain")))
}

func TestHandleError(t *testing.T) {
	t.Run("AppError", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set("request_id", "req-42")

		HandleError(c, InvalidInput("latitude", "out of range"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, ErrInvalidInput, resp.Error)
		assert.Equal(t, "req-42", resp.RequestID)
		assert.Equal(t, "out of range", resp.Details)
		assert.NotEmpty(t, resp.Timestamp)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		HandleError(c, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, ErrInternal, resp.Error)
	})
}

func TestErrorHandler_RecoversPanic(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})
	router.GET("/app-panic", func(c *gin.Context) {
		panic(UnknownUser("ghost"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app-panic", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
