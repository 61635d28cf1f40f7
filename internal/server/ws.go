package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/verovision/internal/app"
	"github.com/ayusman/verovision/pkg/logger"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Controller is what event clients may drive over the socket.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	ClearSentence()
	Snapshot() app.Update
}

type command struct {
	Action string `json:"action"` // start, stop or clear
}

type commandError struct {
	Error string `json:"error"`
}

// EventsHandler pushes every session update to WebSocket clients and accepts
// start, stop and clear commands from them.
type EventsHandler struct {
	hub     *app.Hub
	control Controller
	log     logger.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub *app.Hub, control Controller) *EventsHandler {
	return &EventsHandler{
		hub:     hub,
		control: control,
		log:     logger.Named("events"),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	replies := make(chan any, 1)
	closed := make(chan struct{})
	go h.readCommands(conn, replies, closed)

	if err := h.write(conn, h.control.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case msg := <-replies:
			if err := h.write(conn, msg); err != nil {
				return
			}
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := h.write(conn, u); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) write(conn *websocket.Conn, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// readCommands runs until the client goes away. Only the handler goroutine
// writes to conn; failures are handed back through replies.
func (h *EventsHandler) readCommands(conn *websocket.Conn, replies chan<- any, closed chan<- struct{}) {
	defer close(closed)

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug(context.Background(), "event client gone", logger.Error(err))
			}
			return
		}

		var failure error
		switch cmd.Action {
		case "start":
			failure = h.control.Start(context.Background())
		case "stop":
			h.control.Stop()
		case "clear":
			h.control.ClearSentence()
		default:
			select {
			case replies <- commandError{Error: "unknown action: " + cmd.Action}:
			default:
			}
			continue
		}

		if failure != nil {
			select {
			case replies <- commandError{Error: failure.Error()}:
			default:
			}
		}
	}
}
