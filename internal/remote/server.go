// ABOUTME: Remote control server exposing the player over WebSocket and HTTP
// ABOUTME: Manages controller connections, command dispatch and event broadcast
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dualdeck/dualdeck-go/internal/protocol"
	"github.com/dualdeck/dualdeck-go/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer    = 64
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
	helloTimeout  = 5 * time.Second
)

// Controller applies commands to the player and reports its state
type Controller interface {
	Execute(cmd protocol.Command) error
	Status() protocol.Status
}

// Config holds server configuration
type Config struct {
	Addr    string
	Name    string
	Metrics http.Handler // mounted at /metrics when set
	Logger  logrus.FieldLogger
}

// Server accepts remote controllers
type Server struct {
	config   Config
	ctrl     Controller
	log      logrus.FieldLogger
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*client
	clientsMu sync.RWMutex

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

type client struct {
	ID       string
	Name     string
	conn     *websocket.Conn
	sendChan chan interface{}
}

// New creates a server and registers its routes
func New(config Config, ctrl Controller) *Server {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	s := &Server{
		config:   config,
		ctrl:     ctrl,
		log:      config.Logger.WithField("component", "remote"),
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Controllers run on the local network and are not browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*client),
		stopChan: make(chan struct{}),
	}

	s.mux.HandleFunc("/control", s.handleWebSocket)
	s.mux.HandleFunc("/status", s.handleStatus)
	if config.Metrics != nil {
		s.mux.Handle("/metrics", config.Metrics)
	}
	return s
}

// Handler exposes the routes for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	s.log.WithField("addr", s.config.Addr).Info("Remote control listening")

	var serverErr error
	select {
	case <-s.stopChan:
		s.log.Info("Remote control shutting down")
	case err := <-errChan:
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warnf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections are not closed by Shutdown
	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop ends Start
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Broadcast queues a message for every connected controller
func (s *Server) Broadcast(msgType string, payload interface{}) {
	msg := protocol.Message{Type: msgType, Payload: payload}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.sendChan <- msg:
		default:
			s.log.WithField("client", c.Name).Warn("Client send buffer full, dropping message")
		}
	}
}

// ClientCount returns the number of connected controllers
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.ctrl.Status()); err != nil {
		s.log.Warnf("Error writing status: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	s.log.Debugf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		return
	}
	s.shutdownMu.RUnlock()

	hello, err := s.readHello(conn)
	if err != nil {
		s.log.Warnf("Handshake failed: %v", err)
		writeDirect(conn, protocol.TypeError, protocol.Error{Code: protocol.ErrCodeBadRequest, Message: err.Error()})
		return
	}

	c := &client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		conn:     conn,
		sendChan: make(chan interface{}, sendBuffer),
	}

	s.clientsMu.Lock()
	if _, exists := s.clients[c.ID]; exists {
		s.clientsMu.Unlock()
		s.log.WithField("client_id", c.ID).Warn("Duplicate client ID, rejecting")
		writeDirect(conn, protocol.TypeError, protocol.Error{
			Code:    protocol.ErrCodeDuplicateID,
			Message: "Client ID already connected",
		})
		return
	}
	s.clients[c.ID] = c
	s.clientsMu.Unlock()

	log := s.log.WithFields(logrus.Fields{"client": c.Name, "client_id": c.ID})
	log.Info("Controller connected")

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.ID)
		s.clientsMu.Unlock()
		close(c.sendChan)
		log.Info("Controller disconnected")
	}()

	s.send(c, protocol.TypeServerHello, protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.ProtocolVersion,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})
	s.send(c, protocol.TypeStatus, s.ctrl.Status())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("WebSocket error: %v", err)
			}
			return
		}
		s.handleClientMessage(c, data)
	}
}

func (s *Server) readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("read hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("parse hello: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		return hello, err
	}
	if hello.ClientID == "" || hello.Name == "" {
		return hello, errors.New("hello missing client_id or name")
	}
	return hello, nil
}

func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.log.Warnf("Error marshaling message: %v", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debugf("Error writing message: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleClientMessage(c *client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.send(c, protocol.TypeError, protocol.Error{Code: protocol.ErrCodeBadRequest, Message: "invalid JSON"})
		return
	}

	switch msg.Type {
	case protocol.TypeCommand:
		var cmd protocol.Command
		if err := protocol.DecodePayload(msg.Payload, &cmd); err != nil {
			s.send(c, protocol.TypeError, protocol.Error{Code: protocol.ErrCodeBadRequest, Message: err.Error()})
			return
		}
		s.handleCommand(c, cmd)
	case protocol.TypeStatusRequest:
		s.send(c, protocol.TypeStatus, s.ctrl.Status())
	default:
		s.send(c, protocol.TypeError, protocol.Error{
			Code:    protocol.ErrCodeBadRequest,
			Message: fmt.Sprintf("unknown message type: %s", msg.Type),
		})
	}
}

func (s *Server) handleCommand(c *client, cmd protocol.Command) {
	s.log.WithFields(logrus.Fields{
		"client": c.Name,
		"action": cmd.Action,
		"slot":   cmd.Slot,
	}).Debug("Command received")

	if err := s.ctrl.Execute(cmd); err != nil {
		s.send(c, protocol.TypeError, protocol.Error{ID: cmd.ID, Code: protocol.ErrCodeFailed, Message: err.Error()})
		return
	}

	s.send(c, protocol.TypeAck, protocol.Ack{ID: cmd.ID, Action: cmd.Action})
	s.Broadcast(protocol.TypeStatus, s.ctrl.Status())
}

func (s *Server) send(c *client, msgType string, payload interface{}) {
	select {
	case c.sendChan <- protocol.Message{Type: msgType, Payload: payload}:
	default:
		s.log.WithField("client", c.Name).Warn("Client send buffer full, dropping message")
	}
}

// writeDirect writes before the client writer exists
func writeDirect(conn *websocket.Conn, msgType string, payload interface{}) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
