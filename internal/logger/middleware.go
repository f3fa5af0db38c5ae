package logger

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

// RequestLogger logs one line per HTTP request, choosing the level from the status.
func RequestLogger(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, zapFormatter)
}

// zapFormatter ignores the writer and sends the request line to zap.
func zapFormatter(_ io.Writer, params handlers.LogFormatterParams) {
	fields := []zap.Field{
		zap.String("method", params.Request.Method),
		zap.String("path", params.URL.Path),
		zap.String("ip", params.Request.RemoteAddr),
		zap.Int("status", params.StatusCode),
		zap.Int("size", params.Size),
		zap.Duration("latency", time.Since(params.TimeStamp)),
		zap.String("user_agent", params.Request.UserAgent()),
	}
	switch {
	case params.StatusCode >= 500:
		Error("HTTP request failed", fields...)
	case params.StatusCode >= 400:
		Warn("HTTP request rejected", fields...)
	default:
		Info("HTTP request", fields...)
	}
}
