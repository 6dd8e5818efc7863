package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ExportJobMessage names an export job to run. The worker loads the job
// itself from the shared store.
type ExportJobMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExportJobMessage(id string) *ExportJobMessage {
	return &ExportJobMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *ExportJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportJobMessageFromJSON decodes a message and rejects one without an id.
func ExportJobMessageFromJSON(data []byte) (*ExportJobMessage, error) {
	var msg ExportJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("export job message without id")
	}
	return &msg, nil
}
