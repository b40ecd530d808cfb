package session

import (
	"encoding/binary"

	"github.com/chip-node/matter-core/pkg/crypto"
)

// Frame is a decrypted unicast message: the plaintext payload plus the
// metadata that was authenticated (but not encrypted) alongside it.
type Frame struct {
	// SessionID is the session identifier carried in the associated data.
	SessionID uint16

	// MessageCounter is the sender's counter for this message, already
	// checked against the receiver's ReceptionState by the caller.
	MessageCounter uint32

	// Payload is the decrypted application payload.
	Payload []byte
}

// codec encrypts and decrypts unicast messages for one direction of a
// secure session (one 16-byte key bound to the node ID used in the AEAD
// nonce for that direction).
type codec struct {
	key    []byte
	nodeID uint64
}

// newCodec creates a codec over a 16-byte AES-128 key. nodeID is the node ID
// of the sender in this direction, used for nonce construction (0 for PASE
// sessions, the operational node ID for CASE).
func newCodec(key []byte, nodeID uint64) (*codec, error) {
	if len(key) != crypto.SymmetricKeySize {
		return nil, ErrInvalidKey
	}
	return &codec{key: key, nodeID: nodeID}, nil
}

// associatedData builds the additional authenticated data for a message:
// the 2-byte session ID and 4-byte message counter, both little-endian, as
// carried in the corpus's message header (Spec Section 4.4.1).
func associatedData(sessionID uint16, counter uint32) []byte {
	aad := make([]byte, 6)
	binary.LittleEndian.PutUint16(aad[0:2], sessionID)
	binary.LittleEndian.PutUint32(aad[2:6], counter)
	return aad
}

// Encode encrypts payload under the given session ID and message counter.
// Returns associated data || ciphertext || MIC.
func (c *codec) Encode(sessionID uint16, counter uint32, payload []byte) ([]byte, error) {
	nonce := crypto.BuildAEADNonce(0, counter, c.nodeID)
	aad := associatedData(sessionID, counter)

	ciphertext, err := crypto.AESCCM128Encrypt(c.key, nonce, payload, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	out := make([]byte, len(aad)+len(ciphertext))
	copy(out, aad)
	copy(out[len(aad):], ciphertext)
	return out, nil
}

// Decode parses and decrypts a message produced by Encode.
func (c *codec) Decode(data []byte) (*Frame, error) {
	if len(data) < 6+crypto.MICSize {
		return nil, ErrDecryptionFailed
	}

	aad := data[:6]
	sessionID := binary.LittleEndian.Uint16(aad[0:2])
	counter := binary.LittleEndian.Uint32(aad[2:6])
	ciphertext := data[6:]

	nonce := crypto.BuildAEADNonce(0, counter, c.nodeID)
	plaintext, err := crypto.AESCCM128Decrypt(c.key, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return &Frame{
		SessionID:      sessionID,
		MessageCounter: counter,
		Payload:        plaintext,
	}, nil
}
