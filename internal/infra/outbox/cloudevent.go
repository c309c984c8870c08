package outbox

import (
	"encoding/json"
	"time"
)

// CloudEvent is the structured mode envelope published to the broker.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	TraceParent     string          `json:"traceparent,omitempty"`
	Data            json.RawMessage `json:"data"`
}

// DecodeCloudEvent parses a structured mode envelope.
func DecodeCloudEvent(payload []byte) (CloudEvent, error) {
	var evt CloudEvent
	err := json.Unmarshal(payload, &evt)
	return evt, err
}
