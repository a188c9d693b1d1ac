// Package mirror wraps a strip driver with a read-only web preview.
// Every frame pushed to hardware also fans out to websocket clients,
// and /health reports counters. Clients can watch, never steer: the
// command path stays on the serial byte stream.
package mirror

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"strandctl/internal/strip"
)

// Mirror is a strip.Driver that tees frames to websocket watchers.
type Mirror struct {
	mu      sync.RWMutex
	next    strip.Driver
	pixels  int
	frameID uint64
	start   time.Time
	clients map[*websocket.Conn]bool
}

// Wrap tees a driver of n pixels.
func Wrap(next strip.Driver, n int) *Mirror {
	return &Mirror{
		next:    next,
		pixels:  n,
		start:   time.Now(),
		clients: map[*websocket.Conn]bool{},
	}
}

// Draw forwards the frame to hardware first, then broadcasts it.
func (m *Mirror) Draw(px []strip.Color) error {
	err := m.next.Draw(px)

	rgb := make([]byte, 0, len(px)*3)
	for _, c := range px {
		rgb = append(rgb, c.R(), c.G(), c.B())
	}
	m.mu.Lock()
	m.frameID++
	id := m.frameID
	m.mu.Unlock()
	m.broadcastFrame(id, rgb)
	return err
}

// Halt forwards to the wrapped driver.
func (m *Mirror) Halt() error {
	return m.next.Halt()
}

// Clients reports how many watchers are connected.
func (m *Mirror) Clients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Routes installs the /ws and /health endpoints.
func (m *Mirror) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", m.HandleFramesWS)
	mux.HandleFunc("/health", m.HandleHealth)
}

func (m *Mirror) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.clients[conn] = true
	m.mu.Unlock()

	// Drain and discard whatever the client sends; the read loop only
	// exists to notice the close.
	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.clients, conn)
			m.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *Mirror) HandleHealth(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := map[string]any{
		"frame_id": m.frameID,
		"uptime_s": time.Since(m.start).Seconds(),
		"pixels":   m.pixels,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *Mirror) broadcastFrame(id uint64, rgb []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.clients) == 0 {
		return
	}
	type frame struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}
	b, _ := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: id, RGB: rgb})
	for c := range m.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}
