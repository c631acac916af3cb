package realtime

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	EventImportProgress = "import:progress"
	EventImportComplete = "import:complete"
	EventImportFailed   = "import:failed"
)

// Message is one event addressed to every socket joined to any of Rooms. A socket in several
// of the rooms receives it once.
type Message struct {
	Rooms []string        `json:"rooms"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Publisher delivers a message to the sockets of its room, on this instance or all of them.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

func UserRoom(userID string) string     { return "user:" + userID }
func TenantRoom(tenantID string) string { return "tenant:" + tenantID }

func NewMessage(event string, data interface{}, rooms ...string) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, errors.Wrapf(err, "encode %s payload", event)
	}
	return Message{Rooms: rooms, Event: event, Data: raw}, nil
}

func Encode(msg Message) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "encode realtime message")
	}
	return raw, nil
}

func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, errors.Wrap(err, "decode realtime message")
	}
	if len(msg.Rooms) == 0 || msg.Event == "" {
		return Message{}, errors.New("realtime message needs a room and an event")
	}
	return msg, nil
}
