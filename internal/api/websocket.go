package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/modelgate/internal/hooks"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 4096
)

// Frame types pushed to websocket subscribers.
const (
	FrameView  = "view"
	FrameError = "error"
)

// Frame is one websocket message from server to client.
type Frame struct {
	Type  string             `json:"type"`
	View  *SelectionResponse `json:"view,omitempty"`
	Error string             `json:"error,omitempty"`
}

// clientMessage is a request sent by a websocket client.
type clientMessage struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

var pushEvents = []hooks.HookEvent{
	hooks.EventSelectionChanged,
	hooks.EventPolicyReconciled,
	hooks.EventConfigReloaded,
}

// sessionEvents accepts events published for principal, so a shared bus does
// not wake connections of other sessions.
func sessionEvents(principal string) func(*hooks.EventContext) bool {
	return func(e *hooks.EventContext) bool { return e.Principal == principal }
}

// handleWebsocket pushes the selection view on connect and after every change.
// Clients may send {"action":"select","id":"..."}; a rejected selection is
// answered with an error frame followed by the current view.
func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	notify := make(chan struct{}, 1)
	bus := s.session.Bus()
	ours := sessionEvents(s.session.Principal())
	subs := make([]*hooks.Subscription, 0, len(pushEvents))
	for _, evt := range pushEvents {
		subs = append(subs, bus.SubscribeWithFilter(evt, func(*hooks.EventContext) {
			select {
			case notify <- struct{}{}:
			default:
			}
		}, ours))
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	outgoing := make(chan Frame, 8)
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go s.readLoop(conn, outgoing, done, stop)

	view := s.selectionResponse()
	if err := writeFrame(conn, Frame{Type: FrameView, View: &view}); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-notify:
			view := s.selectionResponse()
			if err := writeFrame(conn, Frame{Type: FrameView, View: &view}); err != nil {
				return
			}
		case frame := <-outgoing:
			if err := writeFrame(conn, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(conn *websocket.Conn, outgoing chan<- Frame, done chan<- struct{}, stop <-chan struct{}) {
	defer close(done)
	send := func(f Frame) bool {
		select {
		case outgoing <- f:
			return true
		case <-stop:
			return false
		}
	}
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if !send(Frame{Type: FrameError, Error: "invalid message"}) {
				return
			}
			continue
		}
		switch msg.Action {
		case "select":
			if err := s.session.Select(msg.ID); err != nil {
				view := s.selectionResponse()
				if !send(Frame{Type: FrameError, Error: err.Error()}) || !send(Frame{Type: FrameView, View: &view}) {
					return
				}
			}
		case "refresh":
			view := s.selectionResponse()
			if !send(Frame{Type: FrameView, View: &view}) {
				return
			}
		default:
			if !send(Frame{Type: FrameError, Error: "unknown action"}) {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
