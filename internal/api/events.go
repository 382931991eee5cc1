package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/training-engine/internal/events"
)

const (
	eventBuffer = 256
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is one frame on the event stream
type StreamMessage struct {
	Type  string        `json:"type"` // connected | event | dropped
	Event *events.Event `json:"event,omitempty"`
	Count int           `json:"count,omitempty"`
}

// handleEventsWS streams engine cues (audio, haptics, UI) to a client.
// Slow clients lose events rather than stall the engine.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	queue := make(chan events.Event, eventBuffer)
	var dropped atomic.Int64
	unsubscribe := s.engine.Subscribe(func(e events.Event) {
		select {
		case queue <- e:
		default:
			dropped.Add(1)
		}
	})
	defer unsubscribe()

	slog.Info("event stream connected", "client", callerName(r.Context()), "remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go readPump(ctx, cancel, conn)

	if err := writeFrame(conn, StreamMessage{Type: "connected"}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var reported int64
	for {
		select {
		case <-ctx.Done():
			slog.Info("event stream disconnected", "client", callerName(r.Context()), "remote_addr", r.RemoteAddr)
			return
		case e := <-queue:
			if err := writeFrame(conn, StreamMessage{Type: "event", Event: &e}); err != nil {
				return
			}
			if n := dropped.Load(); n > reported {
				if err := writeFrame(conn, StreamMessage{Type: "dropped", Count: int(n - reported)}); err != nil {
					return
				}
				reported = n
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed, and
// cancels the stream when the client goes away
func readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for ctx.Err() == nil {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		slog.Debug("failed to send event frame", "error", err)
		return err
	}
	return nil
}
