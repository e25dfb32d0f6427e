package pqmsg

import (
	"encoding/json"
	"fmt"
	"time"
)

// payload is the plaintext carried inside an envelope. Sender and receiver
// are inside the ciphertext so a relay cannot rebind a message to another
// conversation.
type payload struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
	SentAt   int64  `json:"sentAt"`
}

func newPayload(m *Message) payload {
	return payload{
		ID:       m.ID,
		Sender:   m.Sender,
		Receiver: m.Receiver,
		Content:  m.Content,
		SentAt:   m.Timestamp.UnixMilli(),
	}
}

// maxSentAt is the last millisecond of year 9999, the limit of RFC 3339.
var maxSentAt = time.Date(9999, 12, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli()

func decodePayload(data []byte) (payload, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return payload{}, &VerificationError{Reason: "payload", Err: err}
	}
	if p.ID == "" {
		return payload{}, &VerificationError{Reason: "payload", Err: fmt.Errorf("missing message id")}
	}
	if p.SentAt < 0 || p.SentAt > maxSentAt {
		return payload{}, &VerificationError{Reason: "payload", Err: fmt.Errorf("timestamp %d out of range", p.SentAt)}
	}
	return p, nil
}

// check binds the payload to the conversation it arrived on.
func (p *payload) check(peer, self string) error {
	if p.Sender != peer {
		return &VerificationError{Reason: fmt.Sprintf("sender %q does not match peer %q", p.Sender, peer)}
	}
	if p.Receiver != self {
		return &VerificationError{Reason: fmt.Sprintf("message addressed to %q", p.Receiver)}
	}
	return nil
}

func (p *payload) message() Message {
	return Message{
		ID:        p.ID,
		Sender:    p.Sender,
		Receiver:  p.Receiver,
		Content:   p.Content,
		Timestamp: time.UnixMilli(p.SentAt).UTC(),
		Status:    StatusUnread,
	}
}
