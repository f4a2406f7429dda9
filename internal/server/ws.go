package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dbayan/storefront/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket connection to chat.Conn. Writes are
// serialized; gorilla allows only one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Send(f chat.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(f)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) closeWithPolicyViolation(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.conn.Close()
}

// handleChat is the persistent realtime channel. Visitors are queued for
// support the moment they connect; the operator observes the queue and
// claims visitors with startChat frames.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	isOperator := r.URL.Query().Get("isAdmin") == "true" &&
		s.config.OperatorEmail != "" && email == strings.ToLower(s.config.OperatorEmail)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("chat upgrade failed", zap.Error(err))
		return
	}
	c := newWSConn(conn)

	if email == "" || name == "" {
		c.closeWithPolicyViolation("email and name are required")
		return
	}

	if banned, err := s.store.IsBanned(r.Context(), email); err == nil && banned {
		c.closeWithPolicyViolation("this email is banned")
		return
	}

	s.sessions.Touch(email, name)

	if isOperator {
		s.runOperator(c)
	} else {
		s.runVisitor(c, email, name)
	}
}

func (s *Server) runOperator(c *wsConn) {
	s.hub.AddOperator(c)
	defer func() {
		s.hub.DropOperator(c)
		_ = c.Close()
	}()

	for {
		var frame chat.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case chat.FrameStartChat:
			if err := s.hub.Claim(c, frame.Email); err != nil {
				s.log.Warn("claim failed", zap.String("email", frame.Email), zap.Error(err))
				// The queue moved under the operator; push a fresh view.
				_ = c.Send(chat.Frame{Type: chat.FrameQueueUpdate, Waiting: s.hub.Waiting()})
			}
		case chat.FrameMessage:
			if err := s.hub.RelayFromOperator(frame.Email, frame.Text); err != nil &&
				!errors.Is(err, chat.ErrNoActivePair) {
				s.log.Warn("operator relay failed", zap.Error(err))
			}
		default:
			s.log.Debug("ignoring operator frame", zap.String("type", frame.Type))
		}
	}
}

func (s *Server) runVisitor(c *wsConn, email, name string) {
	if err := s.hub.Enqueue(email, name, c); err != nil {
		c.closeWithPolicyViolation("already in the support queue")
		return
	}
	defer func() {
		s.hub.DropUser(email)
		_ = c.Close()
	}()

	for {
		var frame chat.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case chat.FrameMessage:
			if err := s.hub.RelayFromUser(email, name, frame.Text); err != nil {
				s.log.Debug("visitor message before pairing", zap.String("email", email))
			}
		case chat.FrameStartChat:
			// Visitors are queued on connect; nothing to do.
		default:
			s.log.Debug("ignoring visitor frame", zap.String("type", frame.Type))
		}
	}
}
