package httpadapter

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/rentchat/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStreamView pushes a JSON view on every change until the client goes
// away or the view is closed. Only the latest view is sent to slow clients.
// Disconnecting does not close the view; DELETE does.
func (s *Server) handleStreamView(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		return
	}
	defer ws.Close()

	log := observability.LoggerFromContext(r.Context()).With("conversation_id", room.Conversation().ID)

	views, stop := room.Watch()
	defer stop()

	gone := make(chan struct{})
	go readUntilClosed(ws, gone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return

		case v, ok := <-views:
			if !ok {
				closeWS(ws, websocket.CloseNormalClosure, "view closed")
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(toViewResponse(v)); err != nil {
				log.Debug("view stream write failed", "error", err)
				return
			}
			if v.Closed {
				closeWS(ws, websocket.CloseNormalClosure, "view closed")
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so that control messages are handled,
// and closes gone once the connection breaks.
func readUntilClosed(ws *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWS(ws *websocket.Conn, code int, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
