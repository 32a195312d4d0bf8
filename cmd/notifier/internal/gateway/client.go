package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/protocol"
	"github.com/shubham-shewale/stock-notifier/pkg/broadcast"
)

const (
	maxMessageSize = 512 * 1024
	sendBufferSize = 256
)

// Observers is the registration surface of the broadcaster.
type Observers interface {
	AddObserver(s broadcast.Subscriber) error
	RemoveObserver(s broadcast.Subscriber)
}

// SnapshotReader returns the latest stored price payloads for symbols.
type SnapshotReader interface {
	GetSnapshots(ctx context.Context, symbols []string) ([]string, error)
}

// Client is one websocket connection. It is registered as a subscriber for
// as long as the connection is open and forwards ticks for the symbols on
// its watchlist.
type Client struct {
	conn         net.Conn
	observers    Observers
	snapshots    SnapshotReader
	logger       *zap.Logger
	validTickers map[string]bool

	mu     sync.Mutex
	send   chan []byte
	closed bool
	watch  map[string]bool

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewClient(conn net.Conn, observers Observers, snapshots SnapshotReader, logger *zap.Logger, validTickers map[string]bool) *Client {
	return &Client{
		conn:         conn,
		observers:    observers,
		snapshots:    snapshots,
		logger:       logger,
		validTickers: validTickers,
		send:         make(chan []byte, sendBufferSize),
		watch:        make(map[string]bool),
		writeWait:    5 * time.Second,
		pongWait:     60 * time.Second,
		pingPeriod:   50 * time.Second,
	}
}

// Start registers the client and runs its pumps.
func (c *Client) Start() {
	if err := c.observers.AddObserver(c); err != nil {
		c.logger.Error("Failed to register client", zap.String("client", c.ID()), zap.Error(err))
		c.conn.Close()
		return
	}
	c.logger.Debug("Client connected", zap.String("client", c.ID()))

	go c.writePump()
	go c.readPump()
}

func (c *Client) ID() string { return c.conn.RemoteAddr().String() }

// Close stops delivery; writePump closes the connection once the buffer is drained.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// OnEvent forwards the tick if the symbol is on the watchlist. A full send
// buffer drops the tick rather than holding a dispatch worker.
func (c *Client) OnEvent(ctx context.Context, symbol string, value float64) error {
	c.mu.Lock()
	watching := c.watch[symbol]
	c.mu.Unlock()
	if !watching {
		return nil
	}

	c.SendJSON(protocol.WSResponse{
		Type: protocol.TypeTicker,
		Data: broadcast.Event{Symbol: symbol, Value: value},
	})
	return nil
}

func (c *Client) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err == nil {
		c.SendBytes(b)
	}
}

func (c *Client) SendBytes(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		// Drop message if buffer full (Backpressure)
		c.logger.Debug("Dropping message for slow client", zap.String("client", c.ID()))
	}
}

// HandleCommand applies a watchlist command.
func (c *Client) HandleCommand(req protocol.WSRequest) {
	for i, s := range req.Payload.Symbols {
		req.Payload.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	switch req.Action {
	case protocol.ActionSubscribe:
		c.handleSubscribe(req)
	case protocol.ActionUnsubscribe:
		c.handleUnsubscribe(req)
	case protocol.ActionUnsubscribeAll:
		c.handleUnsubscribeAll(req)
	default:
		c.sendError(req.ID, "Unknown action: "+req.Action)
	}
}

func (c *Client) handleSubscribe(req protocol.WSRequest) {
	c.mu.Lock()
	var valid []string
	for _, s := range req.Payload.Symbols {
		// Idempotency: Ignore if already subscribed
		if c.validTickers[s] && !c.watch[s] {
			c.watch[s] = true
			valid = append(valid, s)
		}
	}
	c.mu.Unlock()

	if len(valid) == 0 {
		c.sendError(req.ID, "No valid/new symbols provided")
		return
	}

	c.sendAck(req.ID, fmt.Sprintf("Subscribed to %v", valid))

	if c.snapshots == nil {
		return
	}

	// Send Snapshots (Async to keep the read loop responsive)
	go func(targets []string) {
		snaps, err := c.snapshots.GetSnapshots(context.Background(), targets)
		if err != nil {
			c.logger.Warn("Failed to load snapshots", zap.Strings("symbols", targets), zap.Error(err))
			return
		}
		for _, snap := range snaps {
			c.SendJSON(protocol.WSResponse{Type: protocol.TypeSnapshot, Data: json.RawMessage(snap)})
		}
	}(valid)
}

func (c *Client) handleUnsubscribe(req protocol.WSRequest) {
	c.mu.Lock()
	var removed []string
	for _, s := range req.Payload.Symbols {
		if c.watch[s] {
			delete(c.watch, s)
			removed = append(removed, s)
		}
	}
	c.mu.Unlock()

	if len(removed) > 0 {
		c.sendAck(req.ID, fmt.Sprintf("Unsubscribed from %v", removed))
	} else {
		c.sendError(req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Symbols))
	}
}

func (c *Client) handleUnsubscribeAll(req protocol.WSRequest) {
	c.mu.Lock()
	c.watch = make(map[string]bool)
	c.mu.Unlock()

	c.sendAck(req.ID, "Unsubscribed from all symbols")
}

func (c *Client) sendAck(id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: "success", Message: msg})
}

func (c *Client) sendError(id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Status: "error", Message: msg})
}

func (c *Client) readPump() {
	defer func() {
		c.observers.RemoveObserver(c)
		c.Close()
		c.logger.Debug("Client disconnected", zap.String("client", c.ID()))
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			return
		}

		if header.Length > int64(maxMessageSize) {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			return
		}

		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			return
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong:
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		case ws.OpText:
			var req protocol.WSRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				c.sendError("", "Invalid JSON")
				continue
			}
			c.HandleCommand(req)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.Write(ws.CompiledClose)
				return
			}
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
