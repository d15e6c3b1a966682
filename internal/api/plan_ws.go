package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribe struct {
	PlanID string `json:"planId"`
}

// PlanWSHandler streams plan events over a WebSocket. Clients send
// {"type":"subscribe","id":...,"payload":{"planId":...}} and receive
// {"type":"event","id":...,"payload":{...}} frames until they
// {"type":"complete"} or disconnect.
func (s *Server) PlanWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		planID string
		ch     chan Event
		done   chan struct{}
	}
	subs := map[string]sub{}
	defer func() {
		for _, sb := range subs {
			close(sb.done)
			s.Broker.Unsubscribe(sb.planID, sb.ch)
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl wsSubscribe
			_ = json.Unmarshal(msg.Payload, &pl)
			if pl.PlanID == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"planId required"}`)})
				continue
			}
			ch := s.Broker.Subscribe(pl.PlanID)
			done := make(chan struct{})
			subs[msg.ID] = sub{planID: pl.PlanID, ch: ch, done: done}
			go func(id string) {
				for {
					select {
					case <-done:
						return
					case evt, open := <-ch:
						if !open {
							return
						}
						payload, _ := json.Marshal(map[string]any{"type": evt.Type, "data": evt.Data})
						if err := write(wsMessage{Type: "event", ID: id, Payload: payload}); err != nil {
							return
						}
					}
				}
			}(msg.ID)
		case "complete":
			if sb, ok := subs[msg.ID]; ok {
				close(sb.done)
				s.Broker.Unsubscribe(sb.planID, sb.ch)
				delete(subs, msg.ID)
			}
		}
	}
}
