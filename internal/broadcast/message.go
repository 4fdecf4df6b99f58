// Package broadcast delivers market events to websocket subscribers and
// to a Kafka topic.
package broadcast

import (
	"encoding/json"
	"time"
)

// Message is the envelope every subscriber receives.
type Message struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func encode(event string, data any, at time.Time) ([]byte, error) {
	return json.Marshal(Message{Event: event, Data: data, Timestamp: at.UTC()})
}
