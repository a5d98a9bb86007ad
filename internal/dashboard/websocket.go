package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientRequest is the incoming websocket message format.
type clientRequest struct {
	Type string `json:"type"` // "select", "run" or "ping"
	ID   string `json:"id"`
	runRequest
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := d.hub.register(conn)
	go c.writePump()
	defer d.hub.unregister(c)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				d.logger.Debug().Err(err).Msg("Websocket read")
			}
			return
		}

		var req clientRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			d.sendError(c, "invalid message format")
			continue
		}

		switch req.Type {
		case "ping":
			d.hub.reply(c, message{Type: "pong"})
		case "select":
			if err := d.selectNode(req.ID); err != nil {
				d.sendError(c, err.Error())
			}
		case "run":
			ticket, err := d.startRun(r.Context(), req.runRequest)
			if err != nil {
				d.sendError(c, err.Error())
				continue
			}
			d.hub.reply(c, message{Type: "run_accepted", RequestID: ticket.Request.RequestID})
		default:
			d.sendError(c, "unknown message type: "+req.Type)
		}
	}
}

func (d *Dashboard) sendError(c *client, content string) {
	d.hub.reply(c, message{Type: "error", Content: content})
}
