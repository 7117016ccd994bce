package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	dservice "FinSight/internal/domain/service"

	"github.com/gorilla/websocket"
)

// SocketBackend adapts a wake-word daemon reachable over WebSocket. The
// daemon owns the actual engine; this adapter only drives its protocol:
// start/stop commands out, detection frames in, release to unload the
// engine model.
type SocketBackend struct {
	url     string
	keyword string

	mu      sync.Mutex
	conn    *websocket.Conn
	events  chan models.WakeEvent
	stopped bool
	wg      sync.WaitGroup
}

// NewSocket creates a new SocketBackend instance.
func NewSocket(url, keyword string) *SocketBackend {
	return &SocketBackend{url: url, keyword: keyword}
}

func (b *SocketBackend) Name() string { return "socket" }

// Available dials the daemon once and hangs up. A refused dial means the
// engine cannot be loaded here at all.
func (b *SocketBackend) Available(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 2 * time.Second
	conn, _, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("%w: voice daemon at %s: %v", drepo.ErrBackendUnavailable, b.url, err)
	}
	_ = conn.Close()
	return nil
}

type voiceCommand struct {
	Type    string `json:"type"`
	Keyword string `json:"keyword,omitempty"`
}

type voiceFrame struct {
	Type    string `json:"type"`
	Keyword string `json:"keyword"`
	Reason  string `json:"reason"`
}

// Start connects, asks the daemon to listen, and waits for its verdict.
// A busy daemon declines with (false, nil); the cascade moves on.
func (b *SocketBackend) Start(ctx context.Context) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return false, fmt.Errorf("voice daemon dial: %w", err)
	}
	if err := conn.WriteJSON(voiceCommand{Type: "start", Keyword: b.keyword}); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("voice daemon start: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var verdict voiceFrame
	if err := conn.ReadJSON(&verdict); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("voice daemon handshake: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch verdict.Type {
	case "started":
	case "busy":
		_ = conn.Close()
		return false, nil
	default:
		_ = conn.Close()
		return false, fmt.Errorf("voice daemon refused: %s", verdict.Reason)
	}

	b.mu.Lock()
	b.conn = conn
	b.events = make(chan models.WakeEvent, 8)
	b.stopped = false
	b.mu.Unlock()

	b.wg.Add(1)
	go b.readLoop(conn)
	return true, nil
}

func (b *SocketBackend) readLoop(conn *websocket.Conn) {
	defer b.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f voiceFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Type != "detection" {
			continue
		}
		b.mu.Lock()
		stopped, events := b.stopped, b.events
		b.mu.Unlock()
		if stopped {
			continue
		}
		select {
		case events <- models.WakeEvent{Backend: b.Name(), Keyword: f.Keyword, At: time.Now()}:
		default:
		}
	}
}

// Detections returns the detection channel for the current run.
func (b *SocketBackend) Detections() <-chan models.WakeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events
}

// Stop tells the daemon to stop listening. The connection stays up so a
// later Release can unload the engine; frames arriving after Stop are
// discarded.
func (b *SocketBackend) Stop(ctx context.Context) error {
	b.mu.Lock()
	conn := b.conn
	b.stopped = true
	b.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.WriteJSON(voiceCommand{Type: "stop"}); err != nil {
		return fmt.Errorf("voice daemon stop: %w", err)
	}
	return nil
}

// Release unloads the daemon's engine and drops the connection.
func (b *SocketBackend) Release(ctx context.Context) error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteJSON(voiceCommand{Type: "release"})
	err := conn.Close()
	b.wg.Wait()
	return err
}

var _ dservice.WakeWordBackend = (*SocketBackend)(nil)
var _ dservice.Releaser = (*SocketBackend)(nil)
