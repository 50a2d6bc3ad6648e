package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/face-recognition/internal/analytics"
	"github.com/kozaktomas/face-recognition/internal/constants"
	"github.com/kozaktomas/face-recognition/internal/enrollment"
	"github.com/kozaktomas/face-recognition/internal/pipeline"
	"github.com/kozaktomas/face-recognition/internal/web/binding"
)

// Deps are the services driven by WebSocket events.
type Deps struct {
	Pipeline   *pipeline.Pipeline
	Enrollment *enrollment.Manager
	Analytics  *analytics.Aggregator
	Validator  *binding.Validator
}

// Options tune the per-connection behavior.
type Options struct {
	GeometryTimeout time.Duration
	FrameRate       rate.Limit // frames per second accepted per connection
	FrameBurst      int
	CheckOrigin     func(origin string) bool
}

// Hub upgrades connections and tracks connected clients.
type Hub struct {
	deps     Deps
	opts     Options
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

// NewHub creates a hub. A nil CheckOrigin accepts every origin.
func NewHub(deps Deps, opts Options, logger logrus.FieldLogger) *Hub {
	h := &Hub{
		deps:    deps,
		opts:    opts,
		logger:  logger,
		clients: make(map[string]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no Origin
			if origin == "" || opts.CheckOrigin == nil {
				return true
			}
			return opts.CheckOrigin(origin)
		},
	}
	return h
}

// ServeHTTP upgrades the request and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	burst := max(h.opts.FrameBurst, 1)
	limit := h.opts.FrameRate
	if limit <= 0 {
		limit = rate.Inf
	}

	c := &client{
		id:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan Outbound, constants.EventChannelBuffer),
		limiter: rate.NewLimiter(limit, burst),
		logger:  h.logger,
	}
	c.logger = h.logger.WithField("client_id", c.id)

	h.register(c)
	c.logger.Info("websocket client connected")

	c.enqueue(EventConnected, StatusPayload{Status: "ok", ClientID: c.id})

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
