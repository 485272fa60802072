// Package httpapi exposes the annotation tools over HTTP.
//
// Each MCP tool is reachable as POST /api/tools/:name with the tool arguments
// as the JSON body. Successful calls answer {"data": result}; failures answer
// {"error": message}. Prometheus metrics are served on GET /metrics.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ironsheep/rolabel-mcp/internal/annotation"
	"github.com/ironsheep/rolabel-mcp/internal/logger"
	"github.com/ironsheep/rolabel-mcp/internal/server"
)

// ToolCaller runs a named tool with raw JSON arguments.
type ToolCaller interface {
	CallTool(name string, args json.RawMessage) (interface{}, error)
}

// NewRouter builds the HTTP routes around srv.
func NewRouter(srv ToolCaller) *gin.Engine {
	tools := server.GetToolDefinitions()
	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.Name] = true
	}

	metrics := NewMetrics()

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/tools", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": tools})
	})
	r.POST("/api/tools/:name", func(c *gin.Context) {
		name := c.Param("name")
		if !known[name] {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool: " + name})
			return
		}
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(body) > 0 && !json.Valid(body) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body is not valid JSON"})
			return
		}
		callTool(c, srv, metrics, name, body)
	})
	r.GET("/api/statistics", func(c *gin.Context) {
		callTool(c, srv, metrics, "annotation_statistics", nil)
	})
	r.GET("/metrics", metrics.handler())
	return r
}

func callTool(c *gin.Context, srv ToolCaller, m *Metrics, name string, args json.RawMessage) {
	start := time.Now()
	result, err := srv.CallTool(name, args)
	m.observe(name, start, err)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func statusFor(err error) int {
	var argErr *server.ArgumentError
	switch {
	case errors.As(err, &argErr):
		return http.StatusBadRequest
	case errors.Is(err, server.ErrUnsaved):
		return http.StatusConflict
	case errors.Is(err, annotation.ErrUnknownEntry):
		return http.StatusNotFound
	case errors.Is(err, server.ErrNoProject), errors.Is(err, annotation.ErrNoImage):
		return http.StatusPreconditionFailed
	default:
		return http.StatusUnprocessableEntity
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log().Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// ListenAndServe serves the routes on addr until the listener fails.
func ListenAndServe(addr string, srv ToolCaller) error {
	logger.Log().Info("http api listening", zap.String("addr", addr))
	return NewRouter(srv).Run(addr)
}
