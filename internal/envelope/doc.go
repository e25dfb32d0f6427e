// Package envelope implements the wire envelope exchanged between peers.
//
// An [Envelope] carries the AEAD nonce, the ciphertext, the KEM encapsulation
// of the key that sealed it, an algorithm tag, an integrity proof and a
// signature. Two framings are provided:
//
//   - [Marshal]/[Unmarshal]: a binary framing using the protobuf wire format.
//     Every field is tagged and length-delimited, so the blob is parseable
//     without external context. Unknown fields are skipped.
//
//   - [EncodeText]/[DecodeText]: a colon-delimited text framing with
//     base64url fields, suitable for copy and paste.
//
// Envelopes are immutable once constructed. [Envelope.WithProof] and
// [Envelope.WithSignature] return modified copies.
package envelope
