package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthd/hearthd/internal/services/pubsub"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 10 * time.Second
)

var errUnknownTopic = errors.New("unknown topic")

// handleWebsocket streams controller events to a client. The topic is
// selected with ?topic= (default TRIGGER_FIRED) and can be narrowed to
// one sensor with ?sensor=.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	topic := pubsub.Topic(r.URL.Query().Get("topic"))
	switch topic {
	case pubsub.TopicSensorValue, pubsub.TopicTriggerFired, pubsub.TopicProgramUpdated:
	case "":
		topic = pubsub.TopicTriggerFired
	default:
		respondError(w, http.StatusBadRequest, errUnknownTopic)
		return
	}
	filter := r.URL.Query().Get("sensor")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	sub := s.events.Subscribe(topic, filter, 16)
	defer s.events.Unsubscribe(sub)

	// Reader drains control frames and signals close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case message, ok := <-sub.Channel:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(message); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
