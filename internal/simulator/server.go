package simulator

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/okitsu/roomchat/pkg/protocol"
	"nhooyr.io/websocket"
)

// Server accepts websocket connections and drives the Hub.
type Server struct {
	address  string
	hub      *Hub
	log      *slog.Logger
	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New creates a simulator server for the given listen address.
func New(address string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		address: address,
		hub:     NewHub(),
		log:     log,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Hub returns the room hub, mainly so tests can trigger vote broadcasts.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens and serves until Stop is called. It blocks.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	s.server = &http.Server{Handler: mux}

	s.log.Info("simulator listening", "addr", listener.Addr().String())
	return s.server.Serve(listener)
}

// Stop shuts the server down and waits for connection handlers to finish.
// Open websockets are closed explicitly; the http server does not track
// hijacked connections.
func (s *Server) Stop() {
	if s.server != nil {
		_ = s.server.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn("failed to accept websocket connection", "error", err)
		return
	}

	m := &member{outgoing: make(chan []byte, 16)}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(2)
	go s.readLoop(conn, m)
	go s.writeLoop(conn, m)
}

func (s *Server) readLoop(conn *websocket.Conn, m *member) {
	defer s.wg.Done()
	defer func() {
		s.hub.leave(m)
		close(m.outgoing)
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			s.log.Warn("dropping malformed frame", "error", err)
			continue
		}
		s.dispatch(m, env)
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, m *member) {
	defer s.wg.Done()
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	for data := range m.outgoing {
		if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
			s.log.Warn("failed to write to member", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(m *member, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeJoinRoom:
		req, err := env.JoinRoom()
		if err != nil {
			s.log.Warn("dropping malformed JOIN_ROOM", "error", err)
			return
		}
		if strings.TrimSpace(req.RoomID) == "" || strings.TrimSpace(req.Name) == "" {
			s.reject(m, req.RoomID, "name and roomId are required")
			return
		}
		s.hub.join(m, req)
	case protocol.TypeSendMessage:
		req, err := env.SendMessage()
		if err != nil {
			s.log.Warn("dropping malformed SEND_MESSAGE", "error", err)
			return
		}
		if m.roomID == "" || req.RoomID != m.roomID {
			return
		}
		if err := s.hub.addChat(req, m.name); err != nil {
			s.log.Warn("failed to broadcast chat", "error", err)
		}
	default:
		s.log.Debug("ignoring frame", "type", env.Type)
	}
}

// reject queues a JOIN_ERROR on the member without registering it anywhere.
func (s *Server) reject(m *member, roomID, reason string) {
	env, err := protocol.NewEnvelope(protocol.TypeJoinError, protocol.JoinError{
		RoomID: roomID,
		Reason: reason,
	})
	if err != nil {
		return
	}
	data, err := env.Encode()
	if err != nil {
		return
	}
	select {
	case m.outgoing <- data:
	default:
	}
}
