package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"twap-engine/internal/domain"
	"twap-engine/internal/observability"
)

const (
	clientBuffer = 64
	writeTimeout = 10 * time.Second
)

// Hub broadcasts notifications to websocket subscribers as JSON messages.
// Each client gets a buffered channel and a writer goroutine; a client
// that cannot keep up is dropped rather than allowed to stall the engine.
type Hub struct {
	mu      sync.Mutex
	clients map[*hubClient]struct{}
	closed  bool
	logger  *zap.Logger
	metrics *observability.Metrics
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// fillMessage is the wire form of a Fill notification.
type fillMessage struct {
	Type      string `json:"type"`
	OrderSeq  uint64 `json:"order_seq"`
	SliceID   uint64 `json:"slice_id"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Fee       string `json:"fee"`
	Time      int64  `json:"time"`
}

// statusMessage is the wire form of an OrderStatus notification.
type statusMessage struct {
	Type              string `json:"type"`
	OrderSeq          uint64 `json:"order_seq"`
	FilledAmountIn    string `json:"filled_amount_in"`
	ReceivedAmountOut string `json:"received_amount_out"`
	AccruedFee        string `json:"accrued_fee"`
	Status            string `json:"status"`
	Cause             string `json:"cause"`
	Time              int64  `json:"time"`
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*hubClient]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Compile-time interface check.
var _ Notifier = (*Hub)(nil)

// Subscribe registers an upgraded websocket connection. The hub owns the
// connection from this point and closes it on drop or shutdown.
func (h *Hub) Subscribe(conn *websocket.Conn) {
	c := &hubClient{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(n))
	}
	go h.writeLoop(c)
	go h.readLoop(c)
}

// Close drops all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*hubClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
	if h.metrics != nil {
		h.metrics.StreamClients.Set(0)
	}
}

// Fill broadcasts one slice fill.
func (h *Hub) Fill(f domain.FillRecord) {
	h.broadcast(fillMessage{
		Type:      "fill",
		OrderSeq:  f.OrderSeq,
		SliceID:   f.SliceID,
		AmountIn:  f.AmountIn.String(),
		AmountOut: f.AmountOut.String(),
		Fee:       f.Fee.String(),
		Time:      f.ExecutedAt.Unix(),
	})
}

// OrderStatus broadcasts one cumulative order-status event.
func (h *Hub) OrderStatus(e domain.OrderEvent) {
	h.broadcast(statusMessage{
		Type:              "order_status",
		OrderSeq:          e.OrderSeq,
		FilledAmountIn:    e.FilledAmountIn.String(),
		ReceivedAmountOut: e.ReceivedAmountOut.String(),
		AccruedFee:        e.AccruedFee.String(),
		Status:            e.Status.String(),
		Cause:             e.Cause,
		Time:              e.ObservedAt.Unix(),
	})
}

func (h *Hub) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal notification", zap.Error(err))
		return
	}

	h.mu.Lock()
	var slow []*hubClient
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	for _, c := range slow {
		c.shutdown()
		if h.metrics != nil {
			h.metrics.StreamDropsTotal.Inc()
		}
	}
	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(n))
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(c)
			return
		}
	}
	c.conn.Close()
}

// readLoop drains and discards client frames so pings and close frames are
// processed, and detects disconnects.
func (h *Hub) readLoop(c *hubClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *hubClient) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.shutdown()
	if present && h.metrics != nil {
		h.metrics.StreamClients.Set(float64(n))
	}
}

func (c *hubClient) shutdown() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}
