package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/partydeck/game-server/internal/domain"
	"github.com/partydeck/game-server/internal/registry"
	"github.com/partydeck/game-server/internal/room"
)

type Server struct {
	upgrader websocket.Upgrader
	reg      *registry.Registry
	manager  *room.Manager
	log      *slog.Logger

	pingEvery  time.Duration
	sendBuffer int
}

func NewServer(reg *registry.Registry, manager *room.Manager, pingEvery time.Duration, sendBuffer int, log *slog.Logger) *Server {
	if pingEvery <= 0 {
		pingEvery = 15 * time.Second
	}
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Server{
		reg:     reg,
		manager: manager,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery:  pingEvery,
		sendBuffer: sendBuffer,
	}
}

// WS endpoint: GET /ws
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}

	connID := uuid.NewString()
	c := newWsConn(conn, s.sendBuffer)

	if err := s.reg.Register(connID, c); err != nil {
		s.log.Warn("ws register failed", "conn_id", connID, "err", err)
		_ = c.Close()
		return
	}
	s.log.Debug("ws connected", "conn_id", connID)

	go c.writeLoop(s.pingEvery)
	s.readLoop(connID, c)

	// Unregister runs the leave path for the attached participant.
	s.manager.Disconnect(connID)
	_ = c.Close()
	s.log.Debug("ws disconnected", "conn_id", connID)
}

func (s *Server) readLoop(connID string, c *wsConn) {
	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(c, "invalid_message", "malformed message")
			continue
		}
		s.dispatch(connID, c, msg)
	}
}

// dispatch routes one inbound message. Structural errors go back to the
// originating connection only; they never affect other rooms.
func (s *Server) dispatch(connID string, c *wsConn, msg ClientMessage) {
	switch msg.Type {
	case TypeJoinRoom:
		if _, _, err := s.manager.Join(connID, msg.RoomID, msg.DisplayName); err != nil {
			s.sendError(c, domain.ErrorCode(err), err.Error())
		}
	case TypeLeaveRoom:
		s.manager.LeaveConn(connID)
	case TypeGameAction:
		if _, err := s.manager.Action(connID, msg.Action); err != nil {
			s.sendError(c, domain.ErrorCode(err), err.Error())
		}
	case TypeStartGame:
		if _, err := s.manager.Start(msg.RoomID); err != nil {
			s.sendError(c, domain.ErrorCode(err), err.Error())
		}
	case TypeFinishGame:
		if _, err := s.manager.Finish(msg.RoomID, msg.Result); err != nil {
			s.sendError(c, domain.ErrorCode(err), err.Error())
		}
	default:
		s.log.Debug("ws unknown message type", "conn_id", connID, "type", msg.Type)
	}
}

func (s *Server) sendError(c *wsConn, code, message string) {
	err := c.Send(domain.Event{
		Type:    domain.EventError,
		Payload: domain.ErrorPayload{Code: code, Message: message},
	})
	if err != nil {
		s.log.Debug("ws error event dropped", "err", err)
	}
}
