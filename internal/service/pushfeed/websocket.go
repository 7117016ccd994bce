package pushfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// WebSocket implements a PushStream backed by the backend's push daemon.
// The daemon speaks a snake_case field family; frames are normalized to
// canonical models here, at this boundary only.
type WebSocket struct {
	websocketURL   string
	channels       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewWebSocket creates a new WebSocket PushStream.
func NewWebSocket(websocketURL string, channels []string, reconnectDelay, pingInterval time.Duration) drepo.PushStream {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 2 * time.Second
	}
	return &WebSocket{
		websocketURL:   websocketURL,
		channels:       channels,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *WebSocket) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("pushfeed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	log.Printf("pushfeed: connected")
	return nil
}

// Subscribe subscribes to configured channels.
func (c *WebSocket) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if conn == nil || !connected {
		return fmt.Errorf("pushfeed not connected")
	}
	for _, ch := range c.channels {
		msg := map[string]string{"type": "subscribe", "channel": ch}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		log.Printf("pushfeed: subscribed %s", ch)
	}
	return nil
}

type pushHolding struct {
	Symbol        string  `json:"symbol"`
	CompanyName   string  `json:"company_name"`
	Shares        float64 `json:"shares"`
	CurrentPrice  float64 `json:"current_price"`
	TotalValue    float64 `json:"total_value"`
	CostBasis     float64 `json:"cost_basis"`
	ReturnAmount  float64 `json:"return_amount"`
	ReturnPercent float64 `json:"return_percent"`
	Sector        string  `json:"sector"`
}

type pushDelta struct {
	TotalValue         *float64      `json:"total_value"`
	TotalReturn        *float64      `json:"total_return"`
	TotalReturnPercent *float64      `json:"total_return_percent"`
	Holdings           []pushHolding `json:"holdings"`
}

type pushEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Read streams portfolio deltas and errors. Frames other than
// portfolio_update are ignored.
func (c *WebSocket) Read(ctx context.Context) (<-chan *models.PortfolioMetrics, <-chan error) {
	deltas := make(chan *models.PortfolioMetrics, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(deltas)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("pushfeed conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("pushfeed read: %w", err)
					return
				}
				var env pushEnvelope
				if err := json.Unmarshal(b, &env); err != nil {
					// ignore malformed frames
					continue
				}
				if env.Type != "portfolio_update" {
					continue
				}
				var d pushDelta
				if err := json.Unmarshal(env.Data, &d); err != nil {
					continue
				}
				select {
				case deltas <- d.toModel():
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return deltas, errs
}

func (d *pushDelta) toModel() *models.PortfolioMetrics {
	m := &models.PortfolioMetrics{
		TotalValue:         finiteOrNil(d.TotalValue),
		TotalReturn:        finiteOrNil(d.TotalReturn),
		TotalReturnPercent: finiteOrNil(d.TotalReturnPercent),
		AsOf:               time.Now(),
		Source:             models.SourcePush,
	}
	if d.Holdings != nil {
		m.Holdings = make([]models.Holding, 0, len(d.Holdings))
		for _, h := range d.Holdings {
			m.Holdings = append(m.Holdings, models.Holding{
				Symbol:        h.Symbol,
				Name:          h.CompanyName,
				Quantity:      h.Shares,
				Price:         h.CurrentPrice,
				Value:         h.TotalValue,
				CostBasis:     h.CostBasis,
				Return:        h.ReturnAmount,
				ReturnPercent: h.ReturnPercent,
				Sector:        h.Sector,
			})
		}
	}
	return m
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// Reconnect closes and reconnects.
func (c *WebSocket) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *WebSocket) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *WebSocket) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
