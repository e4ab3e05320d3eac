package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// WSMessage represents a message from the client
type WSMessage struct {
	Action   string `json:"action"`
	PromptID string `json:"prompt_id,omitempty"`
	Choice   *int   `json:"choice,omitempty"`
}

// OutMessage is a frame sent to a client
type OutMessage struct {
	Type     string   `json:"type"` // message | broadcast | question | toast
	Text     string   `json:"text,omitempty"`
	PromptID string   `json:"prompt_id,omitempty"`
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`
	CanSkip  bool     `json:"can_skip,omitempty"`
	Level    string   `json:"level,omitempty"`
}

// Client represents a websocket connection of one participant in one group
type Client struct {
	conn        *websocket.Conn
	participant Participant
	group       string
	limiter     *rate.Limiter
	writeMu     sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

func (c *Client) send(msg OutMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	LogWSMessage("OUT", c.participant.Name, string(data))
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// pendingPrompt is an open RequestChoice waiting for its answer
type pendingPrompt struct {
	to     ParticipantID
	q      Question
	answer chan int
}

func (p *pendingPrompt) frame(id string) OutMessage {
	return OutMessage{Type: "question", PromptID: id, Question: p.q.Text, Options: p.q.Options, CanSkip: p.q.CanSkip}
}

const (
	writeWait = 10 * time.Second
	// inbound frames per second a client may send, with a small burst
	clientRate  = 5
	clientBurst = 10
)

// Hub owns the WebSocket connections and is the Notifier every session
// talks through.
type Hub struct {
	clients    map[*websocket.Conn]*Client
	pending    map[string]*pendingPrompt
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup

	registry *Registry
	settings GameSettings
	recorder Recorder
	// ctx is the parent of every session started through the hub
	ctx context.Context
}

func newHub(ctx context.Context, registry *Registry, settings GameSettings, recorder Recorder) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		pending:    make(map[string]*pendingPrompt),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
		registry:   registry,
		settings:   settings,
		recorder:   recorder,
		ctx:        ctx,
	}
}

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
}

func (h *Hub) run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			var open []OutMessage
			for id, p := range h.pending {
				if p.to == client.participant.ID {
					open = append(open, p.frame(id))
				}
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (%s in group %s). Total: %d", client.participant.Name, client.group, total)
			// a reconnecting player gets their open questions again
			for _, msg := range open {
				if err := client.send(msg); err != nil {
					log.Printf("WebSocket write error to %s: %v", client.participant.Name, err)
				}
			}

		case conn := <-h.unregister:
			h.mu.Lock()
			client, ok := h.clients[conn]
			if ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			if ok {
				DebugLog("hub.unregister: '%s' left group %s", client.participant.Name, client.group)
			}
			log.Printf("WebSocket client disconnected. Total: %d", total)
		}
	}
}

// sendWhere writes msg to every client matching keep
func (h *Hub) sendWhere(msg OutMessage, keep func(*Client) bool) {
	h.mu.RLock()
	var targets []*Client
	for _, c := range h.clients {
		if keep(c) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		if err := c.send(msg); err != nil {
			log.Printf("WebSocket write error to %s: %v", c.participant.Name, err)
			select {
			case h.unregister <- c.conn:
			default:
			}
		}
	}
}

func (h *Hub) sendToParticipant(id ParticipantID, msg OutMessage) {
	h.sendWhere(msg, func(c *Client) bool { return c.participant.ID == id })
}

func (h *Hub) Notify(_ context.Context, to Participant, text string) {
	h.sendToParticipant(to.ID, OutMessage{Type: "message", Text: text})
}

func (h *Hub) Broadcast(_ context.Context, group string, text string) {
	h.sendWhere(OutMessage{Type: "broadcast", Text: text}, func(c *Client) bool { return c.group == group })
}

// RequestChoice sends the question to every connection of the participant
// and waits for the first valid answer. A player without a connection can
// still answer after reconnecting, until ctx expires.
func (h *Hub) RequestChoice(ctx context.Context, to Participant, q Question) Choice {
	id := uuid.NewString()
	p := &pendingPrompt{to: to.ID, q: q, answer: make(chan int, 1)}
	h.mu.Lock()
	h.pending[id] = p
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	h.sendToParticipant(to.ID, p.frame(id))
	select {
	case idx := <-p.answer:
		return Choice{Index: idx}
	case <-ctx.Done():
		h.sendToParticipant(to.ID, OutMessage{Type: "toast", Level: "info", Text: "Time is up.", PromptID: id})
		return Choice{TimedOut: true}
	}
}

// answer delivers a client's choice to its open prompt. Wrong or late
// answers get a toast and the prompt keeps waiting.
func (h *Hub) answer(client *Client, msg WSMessage) {
	h.mu.Lock()
	p, ok := h.pending[msg.PromptID]
	if !ok || p.to != client.participant.ID {
		h.mu.Unlock()
		sendToast(client, "warning", "That question is no longer open.")
		return
	}
	if msg.Choice == nil || !p.q.Valid(*msg.Choice) {
		h.mu.Unlock()
		sendToast(client, "error", "That is not one of the options.")
		return
	}
	delete(h.pending, msg.PromptID)
	h.mu.Unlock()
	p.answer <- *msg.Choice
}

func (h *Hub) handleWSMessage(client *Client, message []byte) {
	if !client.limiter.Allow() {
		sendToast(client, "warning", "Slow down!")
		return
	}

	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("WebSocket unmarshal error for %s: %v", client.participant.Name, err)
		sendToast(client, "error", "Malformed message")
		return
	}

	LogWSMessage("IN", client.participant.Name, string(message))

	switch msg.Action {
	case "answer":
		h.answer(client, msg)
	case "start":
		h.handleWSStart(client, false)
	case "chaos":
		h.handleWSStart(client, true)
	case "join":
		h.handleWSJoin(client)
	case "leave":
		h.handleWSLeave(client)
	case "force_start":
		h.handleWSForceStart(client)
	default:
		log.Printf("Unknown action: %s from %s in group %s", msg.Action, client.participant.Name, client.group)
		sendToast(client, "error", "Unknown action")
	}
}

const maxNameLength = 32

func handleWebSocketWith(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group := strings.TrimSpace(r.URL.Query().Get("group"))
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if group == "" || name == "" {
			http.Error(w, "group and name are required", http.StatusBadRequest)
			return
		}
		if len([]rune(name)) > maxNameLength {
			http.Error(w, "name is too long", http.StatusBadRequest)
			return
		}

		header := http.Header{}
		id := participantID(r, header)
		DebugLog("handleWebSocket: '%s' (%s) initiating WebSocket connection to group %s", name, id, group)

		var upgrader = websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			log.Printf("WebSocket upgrade error for %s: %v", name, err)
			return
		}

		client := &Client{
			conn:        conn,
			participant: Participant{ID: id, Name: name},
			group:       group,
			limiter:     rate.NewLimiter(rate.Limit(clientRate), clientBurst),
		}
		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go func() {
			defer func() {
				select {
				case h.unregister <- conn:
				case <-h.done:
					conn.Close()
				}
			}()
			for {
				_, message, err := conn.ReadMessage()
				if err != nil {
					break
				}
				h.handleWSMessage(client, message)
			}
		}()
	}
}
