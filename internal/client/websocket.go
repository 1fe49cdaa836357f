// ABOUTME: WebSocket client for the remote control protocol
// ABOUTME: Handles connection, handshake, command round trips and event routing
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dualdeck/dualdeck-go/internal/protocol"
	"github.com/dualdeck/dualdeck-go/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// CommandError is a command the player rejected
type CommandError struct {
	Code    string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Config holds client configuration
type Config struct {
	ServerAddr string
	Path       string // default /control
	ClientID   string
	Name       string
	Logger     logrus.FieldLogger
}

// Client is a connected remote controller
type Client struct {
	config Config
	log    logrus.FieldLogger
	conn   *websocket.Conn
	mu     sync.RWMutex
	wmu    sync.Mutex

	// Events pushed by the player
	Status      chan protocol.Status
	Completions chan protocol.Completion

	pendingMu sync.Mutex
	pending   map[string]chan error

	server    protocol.ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	if config.Path == "" {
		config.Path = "/control"
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	return &Client{
		config:      config,
		log:         config.Logger.WithField("component", "client"),
		Status:      make(chan protocol.Status, 1),
		Completions: make(chan protocol.Completion, 16),
		pending:     make(map[string]chan error),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Connect dials the player and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	c.log.Debugf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.ProtocolVersion,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	}
	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch msg.Type {
	case protocol.TypeServerHello:
		if err := protocol.DecodePayload(msg.Payload, &c.server); err != nil {
			return err
		}
	case protocol.TypeError:
		var perr protocol.Error
		if err := protocol.DecodePayload(msg.Payload, &perr); err != nil {
			return err
		}
		return &CommandError{Code: perr.Code, Message: perr.Message}
	default:
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	c.log.WithField("player", c.server.Name).Debug("Handshake complete")
	return nil
}

// Server returns the player's hello
func (c *Client) Server() protocol.ServerHello {
	return c.server
}

func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Send runs one command and waits for its ack or error
func (c *Client) Send(ctx context.Context, cmd protocol.Command) error {
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}

	result := make(chan error, 1)
	c.pendingMu.Lock()
	c.pending[cmd.ID] = result
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, cmd.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.sendJSON(protocol.Message{Type: protocol.TypeCommand, Payload: cmd}); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrNotConnected
	}
}

// RequestStatus asks for a status push on the Status channel
func (c *Client) RequestStatus() error {
	return c.sendJSON(protocol.Message{Type: protocol.TypeStatusRequest, Payload: struct{}{}})
}

func (c *Client) readMessages() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.log.Debugf("Read error: %v", err)
			}
			return
		}
		c.handleJSONMessage(data)
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warnf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeAck:
		var ack protocol.Ack
		if err := protocol.DecodePayload(msg.Payload, &ack); err == nil {
			c.resolve(ack.ID, nil)
		}

	case protocol.TypeError:
		var perr protocol.Error
		if err := protocol.DecodePayload(msg.Payload, &perr); err == nil {
			c.resolve(perr.ID, &CommandError{Code: perr.Code, Message: perr.Message})
		}

	case protocol.TypeStatus:
		var status protocol.Status
		if err := protocol.DecodePayload(msg.Payload, &status); err != nil {
			return
		}
		// Keep only the newest status
		select {
		case <-c.Status:
		default:
		}
		select {
		case c.Status <- status:
		default:
		}

	case protocol.TypeCompletion:
		var done protocol.Completion
		if err := protocol.DecodePayload(msg.Payload, &done); err != nil {
			return
		}
		select {
		case c.Completions <- done:
		default:
			c.log.Warn("Completion channel full, dropping event")
		}

	default:
		c.log.Debugf("Unknown message type: %s", msg.Type)
	}
}

func (c *Client) resolve(id string, err error) {
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	c.pendingMu.Unlock()
	if ok {
		ch <- err
	}
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
