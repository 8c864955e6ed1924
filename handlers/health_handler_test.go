package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := CheckerFunc(func(context.Context) error { return nil })
	down := CheckerFunc(func(context.Context) error { return errors.New("refused") })

	tests := []struct {
		name       string
		checks     map[string]Checker
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]Checker{"postgres": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:       "redis down",
			checks:     map[string]Checker{"postgres": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"postgres": "ok", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			router := gin.New()
			router.GET("/health", NewHealthHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), tt.checks).Check)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			req.Equal(tt.wantStatus, rec.Code)
			var body map[string]string
			req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
			req.Equal(tt.wantBody, body)
		})
	}
}
