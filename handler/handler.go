package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

type messageResponse struct {
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Details []any  `json:"details,omitempty"`
}

func Message(c *gin.Context, status int, message string, details ...any) {
	c.JSON(status, messageResponse{
		Message: message,
		Details: details,
	})
}

func Error(c *gin.Context, status int, message string, err error, details ...any) {
	c.JSON(status, errorResponse{
		Message: message,
		Error:   err.Error(),
		Details: details,
	})
}

func returnErr(c *gin.Context, logger *slog.Logger, status int, message string, err error, details ...any) {
	if status >= 500 {
		logger.Error(message, slog.String("err", err.Error()), slog.String("path", c.Request.URL.Path))
	}
	Error(c, status, message, err, details...)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request served",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
