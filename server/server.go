package server

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-session-host/directory"
	"github.com/jrsteele09/go-session-host/internal/config"
	"github.com/jrsteele09/go-session-host/relay"
	"github.com/jrsteele09/go-session-host/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Deps holds the collaborators served over HTTP.
type Deps struct {
	Coordinator *session.Coordinator
	Hub         *Hub
	Tokens      relay.TokenVerifier
	Directory   directory.Lister
	Gatherer    prometheus.Gatherer // optional, enables RouteMetrics
}

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	coordinator *session.Coordinator
	hub         *Hub
	tokens      relay.TokenVerifier
	directory   directory.Lister
	gatherer    prometheus.Gatherer
	upgrader    websocket.Upgrader

	// lastClientID hands out transport client ids, starting at 1.
	lastClientID atomic.Uint64
}

func New(config config.Config, deps Deps) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if deps.Coordinator == nil {
		return nil, errors.New("[Server New] coordinator is required")
	}
	if deps.Hub == nil {
		return nil, errors.New("[Server New] hub is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[Server New] token verifier is required")
	}
	if deps.Directory == nil {
		return nil, errors.New("[Server New] directory lister is required")
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      config,
		coordinator: deps.Coordinator,
		hub:         deps.Hub,
		tokens:      deps.Tokens,
		directory:   deps.Directory,
		gatherer:    deps.Gatherer,
	}
	s.env = config.GetEnv()
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path string, err error) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+err.Error()+ResetColor)
}

// checkOrigin applies the CORS allow-list to websocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := s.config.GetAllowedOrigins()
	return allowed.IsAllowedOrigin(origin) || allowed.IsAllowedOrigin("*")
}
