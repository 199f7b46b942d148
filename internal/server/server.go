// Package server exposes the auth flow over HTTP: routing, request/response
// shaping, cookie transport, and the mapping of flow errors to status codes.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"authflow/internal/auth"
	"authflow/internal/middleware"
)

// Server is the HTTP front of the service.
type Server struct {
	srv *http.Server
	log logrus.FieldLogger
}

// Config carries the HTTP-level settings.
type Config struct {
	Addr        string
	Production  bool
	CORSOrigins []string
}

// New builds the router and wraps it with the middleware chain.
func New(cfg Config, svc *auth.Service, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &handler{svc: svc, production: cfg.Production}

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))

	r.HandleFunc("/", h.root).Methods(http.MethodGet)

	api := r.PathPrefix("/api/user").Subrouter()
	api.HandleFunc("/sign-up", h.signUp).Methods(http.MethodPost)
	api.HandleFunc("/verify/{token}", h.verifyEmail).Methods(http.MethodGet)
	api.HandleFunc("/sign-in", h.signIn).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	api.HandleFunc("/forgot-password", h.forgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/verify-otp", h.verifyOTP).Methods(http.MethodPost)
	api.HandleFunc("/reset-password", h.resetPassword).Methods(http.MethodPost)
	api.Handle("/me", middleware.Session(svc)(http.HandlerFunc(h.me))).Methods(http.MethodGet)

	var root http.Handler = r
	if len(cfg.CORSOrigins) > 0 {
		root = handlers.CORS(
			handlers.AllowedOrigins(cfg.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
			handlers.AllowCredentials(),
		)(root)
	}
	root = handlers.RecoveryHandler(handlers.RecoveryLogger(log))(root)

	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
