// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the selection session over HTTP: a REST view of the
// allowed models and the current selection, a websocket that pushes changes,
// request tagging helpers and the management endpoint that accepts access facts.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/modelgate/internal/config"
	"github.com/traylinx/modelgate/internal/logging"
	"github.com/traylinx/modelgate/internal/session"
	"github.com/traylinx/modelgate/internal/util"
)

// Server is the HTTP boundary of one session.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	session    *session.Session
	sb         *util.StateBox
	cfg        atomic.Pointer[config.Config]
}

// NewServer builds the gin engine and registers every route.
func NewServer(cfg *config.Config, sess *session.Session, sb *util.StateBox) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(sess.Principal()), gin.Recovery())

	s := &Server{engine: engine, session: sess, sb: sb}
	s.cfg.Store(cfg)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	v1 := s.engine.Group("/v1")
	{
		v1.GET("/model-selection", s.handleGetSelection)
		v1.PUT("/model-selection", s.handleSelect)
		v1.GET("/model-selection/ws", s.websocketAuth(), s.handleWebsocket)
		v1.POST("/tag", s.handleTagJSON)
		v1.POST("/tag/query", s.handleTagQuery)
		v1.GET("/model-type/:id", s.handleTypeOf)

		mgmt := v1.Group("", s.managementAuth())
		mgmt.PUT("/access-facts", s.handleAccessFacts)
		mgmt.GET("/access-facts", s.handleGetAccessFacts)
		mgmt.GET("/state-box/status", StateBoxStatusHandler(s.sb))
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Config returns the active configuration.
func (s *Server) Config() *config.Config {
	return s.cfg.Load()
}

// UpdateConfig swaps the configuration used by the auth middleware.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg != nil {
		s.cfg.Store(cfg)
	}
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	log.Infof("API server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
