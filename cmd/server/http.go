package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nickyhof/ShopQL/core"
)

const (
	requestIDHeader = "X-Request-ID"
	identityKey     = "identity"
)

// StartHTTP serves the HTTP API on addr until Stop is called.
func (s *Server) StartHTTP(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	s.httpListener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP API listening", "addr", listener.Addr().String())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", "error", err)
		}
	}()
	return nil
}

// HTTPAddr returns the HTTP API's listening address.
func (s *Server) HTTPAddr() string {
	if s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Handler returns the HTTP API:
//
//	POST /api/query   run one query
//	GET  /api/tables  catalog tables and their schema
//	GET  /api/stats   records per table
//	GET  /healthz     liveness
//	GET  /metrics     Prometheus metrics
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestID(), s.accessLog())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": Version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(s.throttle(), s.requireToken())
	api.POST("/query", s.handleQuery)
	api.GET("/tables", s.handleTables)
	api.GET("/stats", s.handleStats)

	return router
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDHeader))
	}
}

// throttle applies one limiter to the whole API.
func (s *Server) throttle() gin.HandlerFunc {
	limiter := s.newLimiter()
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
				Success:   false,
				Error:     "rate limit exceeded",
				ErrorKind: "rate_limited",
			})
			return
		}
		c.Next()
	}
}

// requireToken validates the bearer token when authentication is enabled.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authRequired() {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Type:    "auth",
				Error:   "authentication required: send Authorization: Bearer <token>",
			})
			return
		}

		granted, err := s.authConfig.validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Type:    "auth",
				Error:   err.Error(),
			})
			return
		}

		c.Set(identityKey, granted.identity)
		c.Next()
	}
}

// statusFor maps a query error kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "malformed":
		return http.StatusBadRequest
	case "unknown_table":
		return http.StatusNotFound
	case "fetch_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleQuery(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success:   false,
			Error:     fmt.Sprintf("invalid request: %v", err),
			ErrorKind: "malformed",
		})
		return
	}

	if identity, ok := c.Get(identityKey); ok {
		s.logger.Debug("query", "identity", identity.(core.Identity).String(), "request_id", c.GetString(requestIDHeader))
	}

	response := s.executeQuery(c.Request.Context(), strings.TrimSpace(req.Query))
	response.Seq = req.Seq

	status := http.StatusOK
	if !response.Success {
		status = statusFor(response.ErrorKind)
	}
	c.JSON(status, response)
}

type tablesResponse struct {
	Tables []core.Table `json:"tables"`
}

func (s *Server) handleTables(c *gin.Context) {
	c.JSON(http.StatusOK, tablesResponse{Tables: s.engine.Catalog().Tables()})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.instance.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, queryError(err))
		return
	}

	data, _ := json.Marshal(stats)
	c.JSON(http.StatusOK, Response{Success: true, Type: "stats", Result: data})
}
