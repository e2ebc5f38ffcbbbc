package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/handlers"
)

// Routes registers a group of handlers on the router
type Routes func(r *mux.Router)

type Server struct {
	router      *mux.Router
	Port        int
	ServiceName string
	logger      primary.Logger
	middleware  *handlers.MiddlewareProvider
	gatherer    prometheus.Gatherer
	events      http.Handler
	routes      []Routes
	srv         *http.Server
}

func NewServer(
	port int,
	serviceName string,
	middleware *handlers.MiddlewareProvider,
	gatherer prometheus.Gatherer,
	events http.Handler,
	logger primary.Logger,
	routes ...Routes,
) *Server {
	return &Server{
		Port:        port,
		ServiceName: serviceName,
		logger:      logger,
		middleware:  middleware,
		gatherer:    gatherer,
		events:      events,
		routes:      routes,
	}
}

func (s *Server) Init() error {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods("GET")
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	if s.events != nil {
		r.Handle("/api/events", s.events).Methods("GET")
	}
	for _, register := range s.routes {
		register(r)
	}

	if s.middleware != nil && s.middleware.Enabled() {
		r.Use(func(next http.Handler) http.Handler {
			guarded := s.middleware.JWTMiddleware(next)
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if strings.HasPrefix(req.URL.Path, "/api/") {
					guarded.ServeHTTP(w, req)
					return
				}
				next.ServeHTTP(w, req)
			})
		})
	}
	s.router = r
	return nil
}

// Handler returns the router; Init must have been called
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	handlers.ResponseWithJson(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.ServiceName,
	})
}

func (s *Server) Start(ctx context.Context) {
	// Set up server
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	// Start the server in a goroutine
	go func() {
		s.logger.Info("Server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down http server...")
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
