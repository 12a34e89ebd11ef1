package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/versecue/speech-gateway/internal/detect"
	"github.com/versecue/speech-gateway/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The gateway runs on the presentation operator's machine;
		// the display client connects from localhost.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

const writeTimeout = 5 * time.Second

// Message is the envelope pushed to display clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Broadcaster fans pipeline events out to connected websocket clients.
// Slow clients are dropped rather than allowed to stall the pipeline.
type Broadcaster struct {
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		logger:  logger.With().Str("component", "events").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the websocket upgrade endpoint.
func (b *Broadcaster) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn().Err(err).Msg("websocket upgrade failed")
			observability.RecordError("ws_upgrade", "events")
			return
		}
		c := &client{
			conn: conn,
			send: make(chan Message, 32),
		}

		b.mu.Lock()
		b.clients[c] = struct{}{}
		count := len(b.clients)
		b.mu.Unlock()
		b.logger.Info().
			Str("remote", r.RemoteAddr).
			Int("clients", count).
			Msg("display client connected")

		go b.writeLoop(c)
		go b.readLoop(c)
	})
}

// Broadcast sends a message to every connected client. Clients whose
// send buffer is full are disconnected.
func (b *Broadcaster) Broadcast(msg Message) {
	b.mu.Lock()
	var stalled []*client
	for c := range b.clients {
		select {
		case c.send <- msg:
		default:
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()

	for _, c := range stalled {
		b.logger.Warn().Msg("dropping stalled display client")
		c.conn.Close()
	}
}

// BroadcastDetection pushes a detection event.
func (b *Broadcaster) BroadcastDetection(ev detect.Event) {
	b.Broadcast(Message{Type: "detection", Payload: ev})
}

// BroadcastState pushes a session state change.
func (b *Broadcaster) BroadcastState(state string) {
	b.Broadcast(Message{Type: "state", Payload: map[string]string{"state": state}})
}

// BroadcastVolume pushes a volume level sample.
func (b *Broadcaster) BroadcastVolume(level float64) {
	b.Broadcast(Message{Type: "volume", Payload: map[string]float64{"level": level}})
}

// ClientCount reports how many display clients are connected.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects all clients.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

func (b *Broadcaster) writeLoop(c *client) {
	for msg := range c.send {
		data, err := json.Marshal(msg)
		if err != nil {
			b.logger.Error().Err(err).Msg("marshal broadcast message")
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.remove(c)
			c.conn.Close()
			return
		}
	}
}

// readLoop drains client frames so pings and close handshakes are
// processed. Display clients never send application data.
func (b *Broadcaster) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			b.remove(c)
			c.conn.Close()
			return
		}
	}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}
