package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The feed is read-only diagnostics on the same host; origin policy
	// belongs to whatever fronts this in a real deployment.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Feed mirrors the binary state broadcasts to websocket spectators. It is the
// one hub component touched from outside the tick goroutine, so it carries
// its own lock.
type Feed struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{conns: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the request and registers the connection. Inbound
// websocket frames are drained and discarded; spectators only listen.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns[ws] = struct{}{}
	f.mu.Unlock()

	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				f.remove(ws)
				return
			}
		}
	}()
}

func (f *Feed) remove(ws *websocket.Conn) {
	f.mu.Lock()
	if _, ok := f.conns[ws]; ok {
		delete(f.conns, ws)
		ws.Close()
	}
	f.mu.Unlock()
}

// Broadcast writes one binary frame to every spectator, dropping connections
// whose writes fail.
func (f *Feed) Broadcast(buf []byte) {
	f.mu.Lock()
	var dead []*websocket.Conn
	for ws := range f.conns {
		if err := ws.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			dead = append(dead, ws)
		}
	}
	for _, ws := range dead {
		delete(f.conns, ws)
		ws.Close()
	}
	f.mu.Unlock()
}

// Len reports the number of connected spectators.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Close disconnects every spectator.
func (f *Feed) Close() {
	f.mu.Lock()
	for ws := range f.conns {
		ws.Close()
	}
	f.conns = make(map[*websocket.Conn]struct{})
	f.mu.Unlock()
}
