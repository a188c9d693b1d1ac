package mirror_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"strandctl/internal/mirror"
	"strandctl/internal/strip"
)

func testServer(t *testing.T, n int) (*mirror.Mirror, *strip.Sim, *httptest.Server) {
	t.Helper()
	sim := strip.NewSim()
	m := mirror.Wrap(sim, n)
	mux := http.NewServeMux()
	m.Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return m, sim, srv
}

func TestDrawPassesThrough(t *testing.T) {
	m, sim, _ := testServer(t, 2)
	if err := m.Draw([]strip.Color{strip.RGB(1, 2, 3), strip.Black}); err != nil {
		t.Fatal(err)
	}
	if sim.Frames() != 1 {
		t.Fatalf("frame did not reach the wrapped driver")
	}
	if sim.Last()[0] != strip.RGB(1, 2, 3) {
		t.Fatalf("frame mangled on the way through: %v", sim.Last())
	}

	if err := m.Halt(); err != nil {
		t.Fatal(err)
	}
	if !sim.Halted() {
		t.Fatalf("halt did not reach the wrapped driver")
	}
}

func TestHealthCountsFrames(t *testing.T) {
	m, _, srv := testServer(t, 4)
	m.Draw(make([]strip.Color, 4))
	m.Draw(make([]strip.Color, 4))

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var health struct {
		FrameID uint64  `json:"frame_id"`
		Pixels  int     `json:"pixels"`
		UptimeS float64 `json:"uptime_s"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.FrameID != 2 {
		t.Fatalf("frame_id = %d, want 2", health.FrameID)
	}
	if health.Pixels != 4 {
		t.Fatalf("pixels = %d, want 4", health.Pixels)
	}
	if health.UptimeS < 0 {
		t.Fatalf("uptime went backwards: %v", health.UptimeS)
	}
}

func TestFramesFanOutToWatchers(t *testing.T) {
	m, _, srv := testServer(t, 2)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// The handler registers the client just after the upgrade; wait
	// for it before pushing the frame.
	for i := 0; i < 100 && m.Clients() == 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Clients() != 1 {
		t.Fatalf("watcher never registered")
	}

	if err := m.Draw([]strip.Color{strip.RGB(0xAA, 0xBB, 0xCC), strip.Black}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var frame struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatal(err)
	}
	if frame.FrameID != 1 {
		t.Fatalf("frame_id = %d, want 1", frame.FrameID)
	}
	want := []byte{0xAA, 0xBB, 0xCC, 0, 0, 0}
	if len(frame.RGB) != len(want) {
		t.Fatalf("rgb = %v, want %v", frame.RGB, want)
	}
	for i := range want {
		if frame.RGB[i] != want[i] {
			t.Fatalf("rgb[%d] = %#x, want %#x", i, frame.RGB[i], want[i])
		}
	}
}

func TestGoneWatcherIsDropped(t *testing.T) {
	m, _, srv := testServer(t, 1)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100 && m.Clients() == 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	conn.Close()

	for i := 0; i < 100 && m.Clients() != 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Clients() != 0 {
		t.Fatalf("closed watcher still registered")
	}

	// Drawing with no watchers is still fine.
	if err := m.Draw([]strip.Color{strip.Black}); err != nil {
		t.Fatal(err)
	}
}
