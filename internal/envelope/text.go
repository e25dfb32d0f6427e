package envelope

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// TextPrefix starts every text-framed envelope and carries the version.
const TextPrefix = "pqm1"

// EncodeText encodes the envelope in the colon-delimited text framing:
//
//	pqm1:<algTag>:<iv>:<encapsulatedKey>:<ciphertext>:<proof>:<signature>:<timestamp>
//
// Byte fields are URL-safe base64 without padding, so they never contain ':'.
func EncodeText(e *Envelope) string {
	enc := base64.RawURLEncoding
	parts := []string{
		TextPrefix,
		strconv.Itoa(int(e.AlgTag)),
		enc.EncodeToString(e.IV),
		enc.EncodeToString(e.EncapsulatedKey),
		enc.EncodeToString(e.Ciphertext),
		enc.EncodeToString(e.Proof),
		enc.EncodeToString(e.Signature),
		strconv.FormatInt(e.Timestamp, 10),
	}
	return strings.Join(parts, ":")
}

// DecodeText parses the text framing produced by EncodeText.
func DecodeText(s string) (*Envelope, error) {
	if len(s) > MaxSize*2 {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, ErrTooLarge)
	}
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 8 {
		return nil, fmt.Errorf("%w: expected 8 fields, got %d", ErrProtocol, len(parts))
	}
	if parts[0] != TextPrefix {
		return nil, fmt.Errorf("%w: %w: prefix %q", ErrProtocol, ErrUnsupportedVersion, parts[0])
	}

	alg, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %q", ErrProtocol, ErrUnknownAlgorithm, parts[1])
	}

	var fields [5][]byte
	names := [5]string{"iv", "encapsulated key", "ciphertext", "proof", "signature"}
	for i := range fields {
		fields[i], err = base64.RawURLEncoding.DecodeString(parts[i+2])
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrProtocol, names[i], err)
		}
	}

	ts, err := strconv.ParseInt(parts[7], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode timestamp: %v", ErrProtocol, err)
	}

	e := &Envelope{
		Version:         Version,
		AlgTag:          AlgTag(alg),
		IV:              fields[0],
		EncapsulatedKey: fields[1],
		Ciphertext:      fields[2],
		Proof:           fields[3],
		Signature:       fields[4],
		Timestamp:       ts,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}
