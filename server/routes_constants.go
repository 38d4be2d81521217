package server

// Route path constants
const (
	// Session control
	RouteSession                = "/session"
	RouteSessionCharacterSelect = "/session/character-select"
	RouteSessionStart           = "/session/start"

	// Lobby listing
	RouteDirectory = "/directory"

	// Client transport (websocket)
	RouteConnect = "/connect"

	// Operations
	RouteMetrics = "/metrics"
)

// QueryJoinToken carries the relay join token on RouteConnect.
const QueryJoinToken = "joinToken"
