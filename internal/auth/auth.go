// Package auth implements the SCRAM-SHA256 and SCRAM-PBKDF2-SHA256
// challenge/response variants the server may select during Connect.
package auth

import (
	"crypto/rand"
	"fmt"

	"github.com/hdbnative/hdb/internal/protocol"
)

// Method names as sent/received in the AuthInit exchange.
const (
	MethodSCRAMSHA256        = "SCRAMSHA256"
	MethodSCRAMPBKDF2SHA256  = "SCRAMPBKDF2SHA256"
)

// clientChallengeSize is the length of the random nonce the client offers
// for each method it proposes.
const clientChallengeSize = 64

// Stepper drives one authentication method's two-message exchange.
type Stepper interface {
	// Name is the method name the server selects in its init reply and
	// that AuthFinalRequest repeats; AuthInitRequest carries only the
	// challenge fields, not the names.
	Name() string
	// InitField returns this method's client-challenge field for the
	// AuthInitRequest.
	InitField() []byte
	// Final consumes the server's init-reply fields for this method and
	// returns the proof field for AuthFinalRequest.
	Final(fields protocol.AuthFields) ([]byte, error)
	// VerifyServerProof checks the server's final-reply proof. Returns an
	// error (never a warning) on mismatch or when the proof is missing.
	VerifyServerProof(proof []byte) error
}

// Negotiate runs the full two-round-trip authentication exchange described
// by SPEC_FULL.md §4.6 through the two callbacks, which perform the actual
// wire round-trips (owned by the session so this package stays transport-
// free). Both methods' client challenges go out in one AuthInitRequest,
// PBKDF2 first; the server picks one via its reply's MethodName.
func Negotiate(username, password string,
	sendInit func(*protocol.AuthInitRequest) (*protocol.AuthInitReply, error),
	sendFinal func(*protocol.AuthFinalRequest) (*protocol.AuthFinalReply, error),
) error {
	steppers := []Stepper{
		newSCRAMPBKDF2SHA256(password),
		newSCRAMSHA256(password),
	}
	byName := make(map[string]Stepper, len(steppers))
	fields := make(protocol.AuthFields, 0, len(steppers))
	for _, s := range steppers {
		byName[s.Name()] = s
		fields = append(fields, s.InitField())
	}

	initReply, err := sendInit(&protocol.AuthInitRequest{Username: username, Fields: fields})
	if err != nil {
		return err
	}
	s, ok := byName[initReply.MethodName]
	if !ok {
		return fmt.Errorf("auth: server selected unsupported method %q", initReply.MethodName)
	}

	proof, err := s.Final(initReply.Fields)
	if err != nil {
		return err
	}

	finalReply, err := sendFinal(&protocol.AuthFinalRequest{
		Username:   username,
		MethodName: s.Name(),
		Proof:      proof,
	})
	if err != nil {
		return err
	}
	return s.VerifyServerProof(finalReply.ServerProof)
}

func randomChallenge() []byte {
	b := make([]byte, clientChallengeSize)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken,
		// which is unrecoverable for a security-sensitive caller.
		panic("auth: crypto/rand unavailable: " + err.Error())
	}
	return b
}

// encodeProofField formats a SCRAM proof as the wire expects it:
// u16 count=1, u8 proof length, proof bytes.
func encodeProofField(proof []byte) []byte {
	out := make([]byte, 0, 3+len(proof))
	out = append(out, 1, 0) // u16 1, little-endian
	out = append(out, byte(len(proof)))
	out = append(out, proof...)
	return out
}
