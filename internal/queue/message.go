package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MessageVersion is bumped whenever Message changes shape. Consumers reject
// payloads stamped with a newer version than they understand.
const MessageVersion = 1

// KindReExtract is the only job kind the worker handles today.
const KindReExtract = "re_extract"

// Message asks a worker to re-run extraction on one stored document.
type Message struct {
	Kind       string `json:"kind"`
	DocumentID string `json:"documentId"`
	ActorID    string `json:"actorId,omitempty"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewReExtract builds a versioned re-extraction job for docID.
func NewReExtract(docID, actorID, requestID string, at time.Time) Message {
	return Message{
		Kind:       KindReExtract,
		DocumentID: docID,
		ActorID:    actorID,
		RequestID:  requestID,
		EnqueuedAt: at.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// Validate reports the first structural problem with msg. A missing kind is
// read as re-extraction so version 1 payloads without it still work.
func (m Message) Validate() error {
	if m.Version > MessageVersion {
		return fmt.Errorf("unsupported message version %d", m.Version)
	}
	if m.Kind != "" && m.Kind != KindReExtract {
		return fmt.Errorf("unsupported message kind %q", m.Kind)
	}
	if strings.TrimSpace(m.DocumentID) == "" {
		return fmt.Errorf("missing document id")
	}
	return nil
}

func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	if msg.Kind == "" {
		msg.Kind = KindReExtract
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload. It does not validate the result.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
