package delivery

import (
	"fmt"

	"github.com/pqmsg/pqmsg/internal/envelope"
	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize bounds a single frame on the wire.
const MaxFrameSize = envelope.MaxSize + 4096

// FrameKind identifies the purpose of a frame.
type FrameKind uint8

const (
	// FrameAnnounce tells the relay which DID the connection serves.
	FrameAnnounce FrameKind = 1
	// FrameEnvelope carries one encoded envelope. Outbound the peer is the
	// recipient; inbound it is the sender.
	FrameEnvelope FrameKind = 2
	// FrameNotice is an informational message from the relay.
	FrameNotice FrameKind = 3
)

func (k FrameKind) String() string {
	switch k {
	case FrameAnnounce:
		return "announce"
	case FrameEnvelope:
		return "envelope"
	case FrameNotice:
		return "notice"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

const (
	frameFieldKind    protowire.Number = 1
	frameFieldPeer    protowire.Number = 2
	frameFieldPayload protowire.Number = 3
)

// Frame is the unit exchanged between a channel and a relay.
type Frame struct {
	Kind    FrameKind
	Peer    string
	Payload []byte
}

// Marshal encodes the frame.
func (f *Frame) Marshal() []byte {
	b := make([]byte, 0, 16+len(f.Peer)+len(f.Payload))
	b = protowire.AppendTag(b, frameFieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Kind))
	if f.Peer != "" {
		b = protowire.AppendTag(b, frameFieldPeer, protowire.BytesType)
		b = protowire.AppendString(b, f.Peer)
	}
	if len(f.Payload) > 0 {
		b = protowire.AppendTag(b, frameFieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Payload)
	}
	return b
}

// UnmarshalFrame decodes a frame. Unknown fields are skipped.
func UnmarshalFrame(b []byte) (*Frame, error) {
	if len(b) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrFrame, len(b))
	}

	var f Frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrFrame, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == frameFieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: kind: %v", ErrFrame, protowire.ParseError(n))
			}
			if v > 0xff {
				return nil, fmt.Errorf("%w: kind %d out of range", ErrFrame, v)
			}
			f.Kind = FrameKind(v)
			b = b[n:]
		case num == frameFieldPeer && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: peer: %v", ErrFrame, protowire.ParseError(n))
			}
			f.Peer = v
			b = b[n:]
		case num == frameFieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: payload: %v", ErrFrame, protowire.ParseError(n))
			}
			f.Payload = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrFrame, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	switch f.Kind {
	case FrameAnnounce, FrameEnvelope, FrameNotice:
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrFrame, f.Kind)
	}
	if f.Kind != FrameNotice && f.Peer == "" {
		return nil, fmt.Errorf("%w: %s frame without peer", ErrFrame, f.Kind)
	}
	return &f, nil
}
