package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-session-host/session"
	"github.com/rs/zerolog/log"
)

const maxClientMessageSize = 4096

// ConnectHandler is the client transport. A client presents the session's
// join token; the coordinator's verdict decides whether the upgrade completes.
func (s *Server) ConnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.tokens.VerifyJoinToken(r.URL.Query().Get(QueryJoinToken)); err != nil {
			logError(r.Method, r.URL.Path, err)
			writeJSONError(w, "invalid_token", "join token is not valid for this session", http.StatusUnauthorized)
			return
		}

		clientID := session.ClientID(s.lastClientID.Add(1))
		verdict := s.coordinator.AdmitConnection(clientID)
		if !verdict.Accepted {
			writeJSONError(w, "connection_rejected", string(verdict.Reason), rejectionStatus(verdict.Reason))
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already replied to the client.
			s.coordinator.RemoveClient(clientID)
			return
		}

		s.hub.register(clientID, conn)
		defer func() {
			s.hub.unregister(clientID)
			s.coordinator.RemoveClient(clientID)
			_ = conn.Close()
		}()

		logger := log.With().Uint64("client_id", uint64(clientID)).Logger()
		logger.Debug().Msg("client connected")

		welcome := Message{Type: MessageWelcome, ClientID: clientID, SessionID: s.coordinator.ID()}
		if err := s.hub.Send(context.Background(), clientID, welcome); err != nil {
			logger.Warn().Err(err).Msg("failed to welcome client")
			return
		}

		conn.SetReadLimit(maxClientMessageSize)
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				if !isExpectedClose(err) {
					logger.Debug().Err(err).Msg("client read failed")
				}
				logger.Debug().Msg("client disconnected")
				return
			}

			switch msg.Type {
			case MessageSelectCharacter:
				s.coordinator.SetCharacterSelection(clientID, msg.CharacterID)
			default:
				logger.Debug().Str("type", msg.Type).Msg("ignoring client message")
			}
		}
	}
}

func rejectionStatus(reason session.RejectReason) int {
	switch reason {
	case session.RejectCapacity:
		return http.StatusServiceUnavailable
	case session.RejectDuplicate:
		return http.StatusConflict
	default:
		return http.StatusForbidden
	}
}

func isExpectedClose(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
	}
	return false
}
