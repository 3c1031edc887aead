package auth

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"crypto/sha256"

	"github.com/hdbnative/hdb/internal/protocol"
)

// minIterations is the lowest PBKDF2 round count this driver accepts from
// the server; anything lower is treated as an attempt to weaken the
// handshake rather than honored.
const minIterations = 15000

// scramPBKDF2SHA256 implements the PBKDF2-hardened SCRAM variant. Iteration
// count arrives big-endian on the wire, unlike every other integer field in
// the protocol.
type scramPBKDF2SHA256 struct {
	password  []byte
	challenge []byte

	key   []byte
	scram scramChallenge
}

func newSCRAMPBKDF2SHA256(password string) *scramPBKDF2SHA256 {
	return &scramPBKDF2SHA256{
		password:  []byte(password),
		challenge: randomChallenge(),
	}
}

func (s *scramPBKDF2SHA256) Name() string      { return MethodSCRAMPBKDF2SHA256 }
func (s *scramPBKDF2SHA256) InitField() []byte { return s.challenge }

func (s *scramPBKDF2SHA256) Final(fields protocol.AuthFields) ([]byte, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("auth: %s expects 3 challenge fields, got %d", s.Name(), len(fields))
	}
	salt, serverNonce, iterField := fields[0], fields[1], fields[2]
	if err := checkSalt(salt); err != nil {
		return nil, err
	}
	if len(iterField) != 4 {
		return nil, fmt.Errorf("auth: %s iteration count field must be 4 bytes, got %d", s.Name(), len(iterField))
	}
	iterations := binary.BigEndian.Uint32(iterField)
	if iterations < minIterations {
		return nil, fmt.Errorf("auth: %s iteration count %d below minimum %d", s.Name(), iterations, minIterations)
	}

	s.scram = scramChallenge{salt: salt, serverNonce: serverNonce, clientChallenge: s.challenge}
	s.key = sha256Sum(pbkdf2.Key(s.password, salt, int(iterations), sha256.Size, sha256.New))
	return encodeProofField(s.scram.clientProof(s.key)), nil
}

func (s *scramPBKDF2SHA256) VerifyServerProof(proof []byte) error {
	if proof == nil {
		return fmt.Errorf("auth: %s final reply carried no server proof", s.Name())
	}
	got, err := decodeProofField(proof)
	if err != nil {
		return err
	}
	return s.scram.verifyServerProof(s.key, got)
}
