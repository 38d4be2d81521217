package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-session-host/catalog"
	"github.com/jrsteele09/go-session-host/session"
	"github.com/jrsteele09/go-session-host/spawn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Message types exchanged with connected clients.
const (
	MessageWelcome         = "welcome"
	MessageSelectCharacter = "select_character"
	MessageLoadScene       = "load_scene"
	MessageSpawn           = "spawn"
)

// Message is the JSON envelope of every websocket frame.
type Message struct {
	Type        string              `json:"type"`
	ClientID    session.ClientID    `json:"clientId,omitempty"`
	SessionID   string              `json:"sessionId,omitempty"`
	CharacterID catalog.CharacterID `json:"characterId,omitempty"`
	Scene       string              `json:"scene,omitempty"`
	Spawn       *spawn.Request      `json:"spawn,omitempty"`
}

const defaultWriteTimeout = 5 * time.Second

// Hub tracks connected clients and fans host messages out to them. It is the
// coordinator's SceneNotifier and the spawn director's Instantiator.
type Hub struct {
	mu           sync.RWMutex
	clients      map[session.ClientID]*hubClient
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// hubClient serialises writes; a websocket connection allows one concurrent writer.
type hubClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var (
	_ session.SceneNotifier = (*Hub)(nil)
	_ spawn.Instantiator    = (*Hub)(nil)
)

type HubOption func(*Hub)

// WithWriteTimeout bounds each frame write when the caller's context has no deadline.
func WithWriteTimeout(timeout time.Duration) HubOption {
	return func(h *Hub) {
		h.writeTimeout = timeout
	}
}

func WithHubLogger(logger zerolog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(options ...HubOption) *Hub {
	h := &Hub{
		clients:      make(map[session.ClientID]*hubClient),
		writeTimeout: defaultWriteTimeout,
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(h)
	}
	h.logger = h.logger.With().Str("component", "hub").Logger()
	return h
}

func (h *Hub) register(clientID session.ClientID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[clientID] = &hubClient{conn: conn}
}

func (h *Hub) unregister(clientID session.ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, clientID)
}

// Connected returns the ids of the connected clients in ascending order.
func (h *Hub) Connected() []session.ClientID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]session.ClientID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Send writes msg to one client.
func (h *Hub) Send(ctx context.Context, clientID session.ClientID, msg Message) error {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("[Hub Send] client %d: %w", clientID, session.ErrUnknownClient)
	}
	return h.write(ctx, client, msg)
}

// Broadcast writes msg to every connected client. A failed write does not stop
// delivery to the others; all failures are returned together.
func (h *Hub) Broadcast(ctx context.Context, msg Message) error {
	h.mu.RLock()
	targets := make(map[session.ClientID]*hubClient, len(h.clients))
	for id, client := range h.clients {
		targets[id] = client
	}
	h.mu.RUnlock()

	var err error
	for id, client := range targets {
		if writeErr := h.write(ctx, client, msg); writeErr != nil {
			err = multierr.Append(err, fmt.Errorf("[Hub Broadcast] client %d: %w", id, writeErr))
		}
	}
	return err
}

// LoadScene tells every client to switch scene.
func (h *Hub) LoadScene(ctx context.Context, scene string) error {
	h.logger.Debug().Str("scene", scene).Msg("broadcasting scene load")
	return h.Broadcast(ctx, Message{Type: MessageLoadScene, Scene: scene})
}

// Instantiate announces a spawned entity to every client.
func (h *Hub) Instantiate(ctx context.Context, req spawn.Request) error {
	return h.Broadcast(ctx, Message{Type: MessageSpawn, ClientID: req.ClientID, Spawn: &req})
}

// CloseAll sends a normal close frame to every client and closes the connections.
// Each connection's read loop then unwinds and deregisters the client.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	targets := make([]*hubClient, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	deadline := time.Now().Add(h.writeTimeout)
	frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	for _, client := range targets {
		client.mu.Lock()
		_ = client.conn.WriteControl(websocket.CloseMessage, frame, deadline)
		_ = client.conn.Close()
		client.mu.Unlock()
	}
}

func (h *Hub) write(ctx context.Context, client *hubClient, msg Message) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(h.writeTimeout)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if err := client.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return client.conn.WriteJSON(msg)
}
