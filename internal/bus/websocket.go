package bus

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"foundry-gateway/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from a separately served frontend; origin
	// policy is enforced by the HTTP layer's CORS configuration.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is the JSON shape clients send on the real-time channel.
type clientFrame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// serverFrame is the JSON shape the server emits.
type serverFrame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// ServeWS upgrades the request to a websocket, registers the connection with
// the hub, and pumps frames in both directions until the client goes away.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	conn := hub.Register()
	go writePump(conn, ws)
	readPump(hub, conn, ws)
	return nil
}

// readPump consumes client frames and dispatches them to the hub. It owns the
// websocket's read side; when it returns the connection is unregistered.
func readPump(hub *Hub, conn *Connection, ws *websocket.Conn) {
	reason := "client closed"
	defer func() {
		hub.Unregister(conn.ID, reason)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				reason = "transport error"
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// Malformed frames are isolated to this connection.
			conn.deliver(models.EventMessage{
				Type:      "error",
				Payload:   map[string]any{"error": "malformed frame"},
				Timestamp: time.Now(),
			})
			continue
		}

		switch frame.Event {
		case "message":
			hub.OnMessage(conn.ID, frame.Data)
		case "ai-chat":
			message, _ := frame.Data["message"].(string)
			model, _ := frame.Data["model"].(string)
			hub.AIChat(conn.ID, message, model)
		case "join-github-events":
			hub.Join(conn.ID, RoomGitHubEvents)
		case "leave-github-events":
			hub.Leave(conn.ID, RoomGitHubEvents)
		case "join-azure-events":
			hub.Join(conn.ID, RoomAzureEvents)
		case "disconnect":
			if r, ok := frame.Data["reason"].(string); ok && r != "" {
				reason = r
			}
			return
		default:
			conn.deliver(models.EventMessage{
				Type:      "error",
				Payload:   map[string]any{"error": "unknown event", "event": frame.Event},
				Timestamp: time.Now(),
			})
		}
	}
}

// writePump drains the connection's delivery queue onto the wire and keeps
// the connection alive with periodic pings.
func writePump(conn *Connection, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-conn.Events():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(toServerFrame(msg)); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func toServerFrame(msg models.EventMessage) serverFrame {
	data := make(map[string]any, len(msg.Payload)+1)
	for k, v := range msg.Payload {
		data[k] = v
	}
	data["timestamp"] = msg.Timestamp.UTC().Format(time.RFC3339)
	return serverFrame{Event: msg.Type, Data: data}
}
