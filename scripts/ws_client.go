// Package main runs a demo WebSocket client for plan events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	apiKey := os.Getenv("API_KEY")

	planID := fmt.Sprintf("demo-%d", time.Now().UnixNano())

	// Connect and subscribe before kicking off the plan so no events
	// are missed.
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/api/plans/ws"}
	hdr := http.Header{}
	if apiKey != "" {
		hdr.Set("X-API-KEY", apiKey)
	}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	pl, _ := json.Marshal(map[string]any{"planId": planID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Kick off a small plan tied to our planId.
	body := []byte(fmt.Sprintf(`{
		"plan_id": %q,
		"jobs": [
			{"id": "job-1", "location": "Solihull, UK", "type": "delivery"},
			{"id": "job-2", "location": "Coventry, UK", "type": "delivery"}
		],
		"drivers": [{"id": "drv-1", "available_hours": 9}],
		"num_drivers_per_day": 1
	}`, planID))
	req, _ := http.NewRequest(http.MethodPost, base+"/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-KEY", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	log.Printf("optimize: %s", resp.Status)

	// Wait briefly to receive the day.solved and plan.completed events.
	select {
	case <-time.After(5 * time.Second):
	case <-done:
	}
}
