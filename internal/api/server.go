// Package api exposes a read-only HTTP introspection surface over the
// node's consensus state and membership table, for operators and
// monitoring. It is additive to spec.md: the protocol-facing console is
// the TCP line interface in internal/console, and nothing here can
// mutate node state.
//
// Structurally this is the teacher's Server (mux.Router, a small
// logging/recovery/CORS middleware chain, graceful http.Server
// shutdown), with the key-value REST surface replaced by read-only
// routes over the OM node's own state: /health, /peers, /current,
// /consensus and /consensus/{id}.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mcastellin/omnode/internal/consensus"
	"github.com/mcastellin/omnode/internal/membership"
)

// Server is the admin HTTP server.
type Server struct {
	addr       string
	router     *mux.Router
	httpServer *http.Server
	members    *membership.Table
	engine     *consensus.Engine
	startTime  time.Time
	log        *zap.SugaredLogger
}

// NewServer creates an admin Server bound to addr, backed by the given
// membership table and consensus engine for read access.
func NewServer(addr string, members *membership.Table, engine *consensus.Engine, log *zap.SugaredLogger) *Server {
	s := &Server{
		addr:      addr,
		router:    mux.NewRouter(),
		members:   members,
		engine:    engine,
		startTime: time.Now(),
		log:       log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLogger)
	s.router.Use(s.panicRecovery)
	s.router.Use(corsHeaders)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/peers", s.handlePeers).Methods("GET")
	s.router.HandleFunc("/current", s.handleCurrent).Methods("GET")
	s.router.HandleFunc("/consensus", s.handleConsensusList).Methods("GET")
	s.router.HandleFunc("/consensus/{id}", s.handleConsensusByID).Methods("GET")
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Router returns the mux router, primarily for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}
