package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// SESSION CONTROL
	s.RegisterRouteHandler("POST "+RouteSession, ChainMiddleware(s.CreateSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.StatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteSession, ChainMiddleware(s.ShutdownHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionCharacterSelect, ChainMiddleware(s.CharacterSelectHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionStart, ChainMiddleware(s.StartGameHandler(), s.APIMiddleware()...))

	// LOBBY
	s.RegisterRouteHandler("GET "+RouteDirectory, ChainMiddleware(s.DirectoryHandler(), s.APIMiddleware()...))

	// CLIENT TRANSPORT
	s.RegisterRouteHandler("GET "+RouteConnect, ChainMiddleware(s.ConnectHandler(), s.TransportMiddleware()...))

	if s.gatherer != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// CORS preflight for every route
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.CorsMiddleware))
}
