package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"werewolfsim/internal/game"
)

var errHubStopped = errors.New("hub stopped")

// Frame types sent to clients
const (
	framePrompt  = "prompt"
	frameMessage = "message"
	frameNotice  = "notice"
	frameSeat    = "seat"
	frameAction  = "action"
)

// WSMessage represents a message from the client
type WSMessage struct {
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
	Text   string `json:"text,omitempty"`
}

// wsFrame is everything the server sends. Options is empty for free text prompts.
type wsFrame struct {
	Type    string   `json:"type"`
	ID      int64    `json:"id,omitempty"`
	Seat    string   `json:"seat,omitempty"`
	Prompt  string   `json:"prompt,omitempty"`
	Options []string `json:"options,omitempty"`
	At      string   `json:"at,omitempty"`
	Source  string   `json:"source,omitempty"`
	Text    string   `json:"text,omitempty"`
	Level   string   `json:"level,omitempty"`
}

// Client represents a websocket connection playing one seat
type Client struct {
	conn    *websocket.Conn
	seat    game.Seat
	writeMu sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

type outbound struct {
	audience []game.Seat
	data     []byte
}

type pendingPrompt struct {
	seat  game.Seat
	data  []byte
	reply chan string
}

// Hub connects people to their seats. It is a game.Chooser for the seats it
// serves and a game.Broadcaster that forwards messages to connected seats.
type Hub struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan outbound
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	claim   func(code string) (game.Seat, error)
	history func(game.Seat) ([]game.Message, error)
	actions func(game.Seat) ([]GameAction, error)

	promptMu sync.Mutex
	nextID   int64
	pending  map[int64]*pendingPrompt
}

// newHub builds a hub. claim maps a code to a seat. history and actions, if set,
// replay a seat's earlier messages and the actions it may see when it connects.
func newHub(claim func(string) (game.Seat, error), history func(game.Seat) ([]game.Message, error),
	actions func(game.Seat) ([]GameAction, error)) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan outbound),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
		claim:      claim,
		history:    history,
		actions:    actions,
		pending:    make(map[int64]*pendingPrompt),
	}
}

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
	h.wg.Wait()
}

func (h *Hub) sendToSeat(seat game.Seat, message []byte) {
	h.mu.RLock()
	var targets []*Client
	for _, client := range h.clients {
		if client.seat == seat {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		LogWSMessage("OUT", seat.String(), string(message))
		if err := client.write(message); err != nil {
			log.Printf("WebSocket write error to seat %s: %v", seat, err)
		}
	}
}

func (c *Client) write(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// start runs the hub loop until stop is called
func (h *Hub) start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run()
	}()
}

func (h *Hub) run() {
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
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (seat %s). Total: %d", client.seat, total)
			h.catchUp(client)

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				DebugLog("hub.unregister: seat %s disconnected", client.seat)
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total: %d", total)

		case out := <-h.broadcast:
			h.mu.RLock()
			var targets []*Client
			for _, client := range h.clients {
				if slices.Contains(out.audience, client.seat) {
					targets = append(targets, client)
				}
			}
			h.mu.RUnlock()

			var failed []*websocket.Conn
			for _, client := range targets {
				if err := client.write(out.data); err != nil {
					log.Printf("WebSocket write error: %v", err)
					failed = append(failed, client.conn)
				}
			}
			if len(failed) > 0 {
				h.mu.Lock()
				for _, conn := range failed {
					conn.Close()
					delete(h.clients, conn)
				}
				h.mu.Unlock()
			}
		}
	}
}

// catchUp sends a (re)connected client its seat, its history and any question
// still waiting for an answer.
func (h *Hub) catchUp(client *Client) {
	frames := [][]byte{mustFrame(wsFrame{Type: frameSeat, Seat: client.seat.String()})}
	if h.history != nil {
		msgs, err := h.history(client.seat)
		if err != nil {
			logError("hub.catchUp: history", err)
		}
		for _, m := range msgs {
			frames = append(frames, messageFrame(m))
		}
	}
	if h.actions != nil {
		actions, err := h.actions(client.seat)
		if err != nil {
			logError("hub.catchUp: actions", err)
		}
		for _, a := range actions {
			frames = append(frames, actionFrame(a))
		}
	}

	h.promptMu.Lock()
	ids := make([]int64, 0, len(h.pending))
	for id, p := range h.pending {
		if p.seat == client.seat {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		frames = append(frames, h.pending[id].data)
	}
	h.promptMu.Unlock()

	for _, f := range frames {
		if err := client.write(f); err != nil {
			log.Printf("WebSocket write error to seat %s: %v", client.seat, err)
			return
		}
	}
}

// Broadcast forwards msg to the connected seats in its audience.
func (h *Hub) Broadcast(msg game.Message) {
	select {
	case h.broadcast <- outbound{audience: msg.Audience, data: messageFrame(msg)}:
	case <-h.done:
	}
}

func (h *Hub) ChooseOne(ctx context.Context, seat game.Seat, prompt string, options []string) (string, error) {
	for {
		answer, err := h.ask(ctx, seat, wsFrame{Type: framePrompt, Prompt: prompt, Options: options})
		if err != nil {
			return "", err
		}
		if slices.Contains(options, answer) {
			return answer, nil
		}
		sendErrorNotice(h, seat, fmt.Sprintf("%q is not one of: %s", answer, strings.Join(options, ", ")))
	}
}

func (h *Hub) ChooseFreeText(ctx context.Context, seat game.Seat, prompt string) (string, error) {
	return h.ask(ctx, seat, wsFrame{Type: framePrompt, Prompt: prompt})
}

// ask sends a prompt to the seat and waits for the first answer to it. A seat that
// is not connected gets the prompt when it connects.
func (h *Hub) ask(ctx context.Context, seat game.Seat, frame wsFrame) (string, error) {
	h.promptMu.Lock()
	h.nextID++
	frame.ID = h.nextID
	p := &pendingPrompt{seat: seat, data: mustFrame(frame), reply: make(chan string, 1)}
	h.pending[frame.ID] = p
	h.promptMu.Unlock()

	defer func() {
		h.promptMu.Lock()
		delete(h.pending, frame.ID)
		h.promptMu.Unlock()
	}()

	h.sendToSeat(seat, p.data)
	select {
	case answer := <-p.reply:
		return strings.TrimSpace(answer), nil
	case <-ctx.Done():
		sendNotice(h, seat, NoticeInfo, "Time is up for that question.")
		return "", ctx.Err()
	case <-h.done:
		return "", errHubStopped
	}
}

func (h *Hub) answer(client *Client, id int64, text string) {
	h.promptMu.Lock()
	p, ok := h.pending[id]
	h.promptMu.Unlock()
	if !ok || p.seat != client.seat {
		sendNotice(h, client.seat, NoticeWarning, "That question is no longer open.")
		return
	}
	select {
	case p.reply <- text:
	default:
		// Another connection of the same seat answered first
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	seat, code, err := seatFromRequest(r, h.claim)
	if err != nil {
		DebugLog("handleWebSocket: rejected connection: %v", err)
		http.Error(w, "Unknown seat code", http.StatusUnauthorized)
		return
	}

	// The default origin check only admits pages served from the hub's own host.
	var upgrader = websocket.Upgrader{}
	header := http.Header{}
	header.Add("Set-Cookie", seatCookie(code).String())
	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Printf("WebSocket upgrade error for seat %s: %v", seat, err)
		return
	}

	DebugLog("handleWebSocket: seat %s upgraded", seat)
	client := &Client{conn: conn, seat: seat}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Handle messages and disconnection
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

func (h *Hub) handleWSMessage(client *Client, message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("WebSocket unmarshal error for seat %s: %v", client.seat, err)
		sendErrorNotice(h, client.seat, "Malformed message.")
		return
	}

	LogWSMessage("IN", client.seat.String(), msg.Action)

	switch msg.Action {
	case "answer":
		h.answer(client, msg.ID, msg.Text)
	default:
		log.Printf("Unknown action: %s for seat %s", msg.Action, client.seat)
	}
}

// serve starts the hub loop and an HTTP server for /ws. The returned function
// shuts both down.
func (h *Hub) serve(addr string) (func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("hub listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	srv := &http.Server{Handler: mux}

	h.start()
	go func() {
		log.Printf("Hub listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logError("hub.serve", err)
		}
	}()
	return func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		h.stop()
		return err
	}, nil
}

func messageFrame(m game.Message) []byte {
	return mustFrame(wsFrame{Type: frameMessage, At: m.At.String(), Source: m.Source, Text: m.Text})
}

func actionFrame(a GameAction) []byte {
	return mustFrame(wsFrame{Type: frameAction, At: a.clock().String(), Text: a.Description})
}

func mustFrame(f wsFrame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return data
}
