// File: internal/infra/web/ws.go
package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/queue"
)

// Hub pushes job status transitions to connected browsers so the recorder UI
// can update without waiting for the next poll. Connections subscribe to one
// session token; updates for other sessions are not delivered to them.
type Hub struct {
	log        *zerolog.Logger
	broadcast  chan queue.Job
	register   chan subscription
	unregister chan *websocket.Conn

	mu      sync.Mutex
	clients map[*websocket.Conn]string // conn -> session token
}

type subscription struct {
	conn  *websocket.Conn
	token string
}

func NewHub(log *zerolog.Logger) *Hub {
	return &Hub{
		log:        log,
		broadcast:  make(chan queue.Job, 16),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		clients:    map[*websocket.Conn]string{},
	}
}

// Run starts the goroutine that owns the client set.
func (h *Hub) Run() {
	go func() {
		for {
			select {
			case sub := <-h.register:
				h.mu.Lock()
				h.clients[sub.conn] = sub.token
				n := len(h.clients)
				h.mu.Unlock()
				h.log.Debug().Int("clients", n).Msg("websocket client connected")
			case conn := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[conn]; ok {
					delete(h.clients, conn)
					conn.Close()
				}
				n := len(h.clients)
				h.mu.Unlock()
				h.log.Debug().Int("clients", n).Msg("websocket client disconnected")
			case job := <-h.broadcast:
				h.deliver(job)
			}
		}
	}()
}

func (h *Hub) deliver(job queue.Job) {
	msg := map[string]interface{}{
		"type":           "job_update",
		"job_id":         job.ID,
		"question_index": job.QuestionIndex,
		"state":          job.State,
		"attempts":       job.Attempts,
	}
	if job.State == queue.StateFailed && job.LastError != "" {
		msg["error"] = job.LastError
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal job update")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, token := range h.clients {
		if token != job.Token {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn().Err(err).Msg("dropping websocket client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Notify is the queue.Listener hook; it must not block the dispatch loop.
func (h *Hub) Notify(job queue.Job) {
	select {
	case h.broadcast <- job:
	default:
		h.log.Warn().Str("job_id", job.ID).Msg("websocket broadcast buffer full, dropping update")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the recorder page served elsewhere in dev.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscribe upgrades the connection and keeps it registered until the peer
// goes away. Incoming messages are discarded; the socket is push-only.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, token string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.register <- subscription{conn: conn, token: token}

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
