package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

const (
	minSaltLength = 16
	proofLength   = 32
)

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// scramChallenge holds the three fields common to both SCRAM variants'
// server challenge: salt, server nonce, and the client's own challenge
// (echoed back so the proof binds to this exact exchange).
type scramChallenge struct {
	salt       []byte
	serverNonce []byte
	clientChallenge []byte
}

func checkSalt(salt []byte) error {
	if len(salt) < minSaltLength {
		return fmt.Errorf("auth: salt too short (%d bytes, need >= %d)", len(salt), minSaltLength)
	}
	return nil
}

// clientProof derives the proof sent to the server from key, which the
// caller has already reduced from the password (sha256(hmac(password,
// salt)) for SCRAM-SHA256, or sha256(PBKDF2-HMAC-SHA256(password, salt,
// iterations)) for the PBKDF2 variant).
func (c *scramChallenge) clientProof(key []byte) []byte {
	msg := concat(c.salt, c.serverNonce, c.clientChallenge)
	sig := hmacSHA256(sha256Sum(key), msg)
	return xor(sig, key)
}

// serverProof computes the proof the server is expected to return,
// symmetric to clientProof but over the reversed field order so a replayed
// client proof can never pass as a server proof. Verifying this on both
// SCRAM variants (not only PBKDF2) closes the gap the source left open.
func (c *scramChallenge) serverProof(key []byte) []byte {
	msg := concat(c.clientChallenge, c.serverNonce, c.salt)
	return hmacSHA256(key, msg)
}

func (c *scramChallenge) verifyServerProof(key, got []byte) error {
	want := c.serverProof(key)
	if !hmac.Equal(want, got) {
		return fmt.Errorf("auth: server proof verification failed (possible MITM or protocol desync)")
	}
	return nil
}

func concat(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(p)
	}
	return buf.Bytes()
}

// proofFieldSize is the wire size of the encoded proof field (u16 count +
// u8 length + proofLength bytes).
const proofFieldSize = 2 + 1 + proofLength

func decodeProofField(b []byte) ([]byte, error) {
	if len(b) != proofFieldSize {
		return nil, fmt.Errorf("auth: unexpected proof field size %d", len(b))
	}
	n := int(b[2])
	if n != proofLength || 3+n > len(b) {
		return nil, fmt.Errorf("auth: unexpected proof length %d", n)
	}
	return b[3 : 3+n], nil
}
