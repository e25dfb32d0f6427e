package auth

import (
	"crypto/subtle"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

const (
	// DigestSize is the size of a plaintext digest.
	DigestSize = blake2b.Size256

	// ProofSize is the size of an integrity proof.
	ProofSize = blake2b.Size256

	// ProofRounds is the length of the hash chain.
	ProofRounds = 16

	digestContext = "pqmsg:digest:v1"
	proofContext  = "pqmsg:proof:v1"
)

// Digest returns the BLAKE2b-256 digest of message content under a
// domain separation tag.
func Digest(content []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(digestContext))
	h.Write(content)
	return h.Sum(nil)
}

// GenerateProof computes the hash-chain commitment over a plaintext digest:
//
//	h0 = H(ctx || 0 || digest)
//	hi = H(ctx || i || h(i-1))
//
// and returns h(ProofRounds-1).
func GenerateProof(digest []byte) []byte {
	var counter [4]byte
	link := digest
	for i := 0; i < ProofRounds; i++ {
		binary.BigEndian.PutUint32(counter[:], uint32(i))
		h, _ := blake2b.New256(nil)
		h.Write([]byte(proofContext))
		h.Write(counter[:])
		h.Write(link)
		link = h.Sum(nil)
	}
	return link
}

// VerifyProof recomputes the commitment for digest and compares it with proof
// in constant time.
func VerifyProof(digest, proof []byte) bool {
	if len(proof) != ProofSize {
		return false
	}
	return subtle.ConstantTimeCompare(GenerateProof(digest), proof) == 1
}
