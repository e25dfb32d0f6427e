package crypto

const (
	// HKDFContext is the context string used in HKDF key derivation
	// for domain separation.
	HKDFContext = "pqmsg:envelope:v1"

	// AEADKeySize is the size of every AEAD key in bytes.
	AEADKeySize = 32
	// AEADNonceSize is the nonce size shared by AES-256-GCM and ChaCha20-Poly1305.
	AEADNonceSize = 12
	// AEADTagSize is the authentication tag size shared by both AEAD schemes.
	AEADTagSize = 16

	// DefaultKEM is the KEM used when none is configured.
	DefaultKEM = "ML-KEM-768"
	// DefaultSignature is the signature scheme used when none is configured.
	DefaultSignature = "ML-DSA-65"
	// DefaultAEAD is the AEAD used when none is configured.
	DefaultAEAD = "AES-256-GCM"
)
