package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mind-engage/hireflow/internal/proctor"
	"github.com/mind-engage/hireflow/internal/session"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 8 << 10
)

// wsClient serialises writes; gorilla connections allow one writer at a time.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// wsIn is a message from the test page.
type wsIn struct {
	Type   string         `json:"type"` // event|interact|fullscreen
	Event  *proctor.Event `json:"event,omitempty"`
	Active *bool          `json:"active,omitempty"`
}

type wsOut struct {
	Type    string            `json:"type"` // snapshot|event|event_result|interact|error
	Session *session.Snapshot `json:"session,omitempty"`
	Event   *session.Event    `json:"event,omitempty"`
	Result  *eventResult      `json:"result,omitempty"`
	// RequestFullscreen answers an interact message.
	RequestFullscreen bool   `json:"request_fullscreen,omitempty"`
	Error             string `json:"error,omitempty"`
}

func (a *SessionAPI) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(a.Origins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, o := range a.Origins {
				if o == origin || o == "*" || o == u.Scheme+"://"+u.Host {
					return true
				}
			}
			return false
		},
	}
}

// serveWS streams session events to the page and accepts integrity events
// from it. Viewers who may not play the session only receive. The
// connection closes when the session closes.
func (a *SessionAPI) serveWS(w http.ResponseWriter, r *http.Request, s *session.Session) {
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session_id", s.ID))
	player := canPlay(r, s)

	up := a.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	client := &wsClient{conn: conn}
	defer conn.Close()

	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	snap := s.Snapshot()
	if err := client.send(wsOut{Type: "snapshot", Session: &snap}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.readLoop(client, s, player, log)
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = client.send(wsOut{Type: "closed"})
				closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
				client.writeMu.Lock()
				_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsWriteWait))
				client.writeMu.Unlock()
				return
			}
			if err := client.send(wsOut{Type: "event", Event: &ev}); err != nil {
				log.Debug("websocket write", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (a *SessionAPI) readLoop(client *wsClient, s *session.Session, player bool, log *zap.Logger) {
	conn := client.conn
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var in wsIn
		if err := json.Unmarshal(data, &in); err != nil {
			_ = client.send(wsOut{Type: "error", Error: "bad json"})
			continue
		}
		if !player {
			_ = client.send(wsOut{Type: "error", Error: "read-only connection"})
			continue
		}
		if out := a.handleWS(s, in); out != nil {
			if err := client.send(out); err != nil {
				return
			}
		}
	}
}

func (a *SessionAPI) handleWS(s *session.Session, in wsIn) *wsOut {
	switch in.Type {
	case "event":
		if in.Event == nil {
			return &wsOut{Type: "error", Error: "event required"}
		}
		res, err := handleEvent(s, *in.Event)
		if err != nil {
			return &wsOut{Type: "error", Error: err.Error()}
		}
		return &wsOut{Type: "event_result", Result: &res}
	case "interact":
		req, err := s.Interact()
		if err != nil {
			return &wsOut{Type: "error", Error: err.Error()}
		}
		return &wsOut{Type: "interact", RequestFullscreen: req}
	case "fullscreen":
		if in.Active == nil {
			return &wsOut{Type: "error", Error: "active required"}
		}
		if err := s.SetFullscreen(*in.Active); err != nil {
			return &wsOut{Type: "error", Error: err.Error()}
		}
		snap := s.Snapshot()
		return &wsOut{Type: "snapshot", Session: &snap}
	}
	return &wsOut{Type: "error", Error: "unknown message type " + in.Type}
}
