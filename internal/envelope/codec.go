package envelope

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the binary framing.
const (
	fieldVersion         protowire.Number = 1
	fieldAlgTag          protowire.Number = 2
	fieldIV              protowire.Number = 3
	fieldCiphertext      protowire.Number = 4
	fieldEncapsulatedKey protowire.Number = 5
	fieldProof           protowire.Number = 6
	fieldSignature       protowire.Number = 7
	fieldTimestamp       protowire.Number = 8
)

// Marshal encodes the envelope in the binary framing. Fields are written in
// field-number order so equal envelopes encode to equal bytes.
func Marshal(e *Envelope) []byte {
	b := make([]byte, 0, 64+len(e.IV)+len(e.Ciphertext)+len(e.EncapsulatedKey)+len(e.Proof)+len(e.Signature))
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Version))
	b = protowire.AppendTag(b, fieldAlgTag, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.AlgTag))
	b = appendBytesField(b, fieldIV, e.IV)
	b = appendBytesField(b, fieldCiphertext, e.Ciphertext)
	b = appendBytesField(b, fieldEncapsulatedKey, e.EncapsulatedKey)
	b = appendBytesField(b, fieldProof, e.Proof)
	b = appendBytesField(b, fieldSignature, e.Signature)
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Timestamp))
	return b
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// Unmarshal parses the binary framing and validates the result.
// All returned errors wrap ErrProtocol.
func Unmarshal(data []byte) (*Envelope, error) {
	if len(data) > MaxSize {
		return nil, fmt.Errorf("%w: %w: %d bytes", ErrProtocol, ErrTooLarge, len(data))
	}

	e := &Envelope{}
	seen := make(map[protowire.Number]bool, 8)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, protowire.ParseError(n))
		}
		data = data[n:]

		known := num >= fieldVersion && num <= fieldTimestamp
		if known {
			if seen[num] {
				return nil, fmt.Errorf("%w: duplicate field %d", ErrProtocol, num)
			}
			seen[num] = true
		}

		switch {
		case !known:
			n = protowire.ConsumeFieldValue(num, typ, data)
		case num == fieldVersion || num == fieldAlgTag || num == fieldTimestamp:
			if typ != protowire.VarintType {
				return nil, fmt.Errorf("%w: field %d has wire type %d", ErrProtocol, num, typ)
			}
			var v uint64
			v, n = protowire.ConsumeVarint(data)
			if n >= 0 {
				if err := setVarint(e, num, v); err != nil {
					return nil, err
				}
			}
		default:
			if typ != protowire.BytesType {
				return nil, fmt.Errorf("%w: field %d has wire type %d", ErrProtocol, num, typ)
			}
			var v []byte
			v, n = protowire.ConsumeBytes(data)
			if n >= 0 {
				setBytes(e, num, bytes.Clone(v))
			}
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrProtocol, num, protowire.ParseError(n))
		}
		data = data[n:]
	}

	for _, required := range []protowire.Number{fieldVersion, fieldAlgTag, fieldIV, fieldCiphertext, fieldEncapsulatedKey} {
		if !seen[required] {
			return nil, fmt.Errorf("%w: missing field %d", ErrProtocol, required)
		}
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func setVarint(e *Envelope, num protowire.Number, v uint64) error {
	switch num {
	case fieldVersion:
		if v > 0xff {
			return fmt.Errorf("%w: %w: %d", ErrProtocol, ErrUnsupportedVersion, v)
		}
		e.Version = uint8(v)
	case fieldAlgTag:
		if v > 0xff {
			return fmt.Errorf("%w: %w: %d", ErrProtocol, ErrUnknownAlgorithm, v)
		}
		e.AlgTag = AlgTag(v)
	case fieldTimestamp:
		e.Timestamp = int64(v)
	}
	return nil
}

func setBytes(e *Envelope, num protowire.Number, v []byte) {
	switch num {
	case fieldIV:
		e.IV = v
	case fieldCiphertext:
		e.Ciphertext = v
	case fieldEncapsulatedKey:
		e.EncapsulatedKey = v
	case fieldProof:
		e.Proof = v
	case fieldSignature:
		e.Signature = v
	}
}
