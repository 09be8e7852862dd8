// Package enigma implements the transport encryption Secret Network applies
// to contract queries and their answers.
//
// The client holds an x25519 key pair. For each message it picks a random
// 32-byte nonce and derives an AES-SIV key from the x25519 secret shared
// with the chain's consensus IO key:
//
//	key  = HKDF-SHA256(X25519(priv, ioKey) || nonce, salt, 32 bytes)
//	wire = nonce || pubkey || AES-SIV(key, codeHash || queryJSON)
//
// The node answers with AES-SIV(key, base64(answerJSON)) under the same key.
package enigma

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/miscreant/miscreant.go"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	KeySize   = 32
	NonceSize = 32
)

var hkdfSalt, _ = hex.DecodeString("000000000000000000024bead8df69990852c202db0e0097c1a12ea637d7e96d")

// ErrShortMessage is returned for a wire message too short to hold the
// nonce and public key.
var ErrShortMessage = errors.New("enigma: message shorter than header")

// KeyPair is an x25519 key pair.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// GenerateKeyPair draws a private key from r.
func GenerateKeyPair(r io.Reader) (*KeyPair, error) {
	priv := make([]byte, KeySize)
	if _, err := io.ReadFull(r, priv); err != nil {
		return nil, fmt.Errorf("enigma: read private key: %w", err)
	}
	return KeyPairFromPrivate(priv)
}

// KeyPairFromPrivate rebuilds the pair of a known private key.
func KeyPairFromPrivate(priv []byte) (*KeyPair, error) {
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("enigma: public key: %w", err)
	}
	return &KeyPair{Private: bytes.Clone(priv), Public: pub}, nil
}

// SharedKey derives the AES-SIV key of one message.
func SharedKey(priv, peer, nonce []byte) ([]byte, error) {
	ikm, err := curve25519.X25519(priv, peer)
	if err != nil {
		return nil, fmt.Errorf("enigma: key exchange: %w", err)
	}
	key := make([]byte, KeySize)
	kdf := hkdf.New(sha256.New, append(ikm, nonce...), hkdfSalt, nil)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("enigma: derive key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with AES-SIV and a single empty associated-data
// item.
func Seal(key, plaintext []byte) ([]byte, error) {
	c, err := miscreant.NewAESCMACSIV(key)
	if err != nil {
		return nil, fmt.Errorf("enigma: %w", err)
	}
	return c.Seal(nil, plaintext, []byte{})
}

// Open reverses Seal. A tampered ciphertext or a wrong key fails.
func Open(key, ciphertext []byte) ([]byte, error) {
	c, err := miscreant.NewAESCMACSIV(key)
	if err != nil {
		return nil, fmt.Errorf("enigma: %w", err)
	}
	pt, err := c.Open(nil, ciphertext, []byte{})
	if err != nil {
		return nil, fmt.Errorf("enigma: open: %w", err)
	}
	return pt, nil
}

// Encrypt builds the wire form of msg for the contract with codeHash. It
// returns the nonce as well, since the answer is decrypted under it.
func (k *KeyPair) Encrypt(r io.Reader, ioKey []byte, codeHash string, msg []byte) (wire, nonce []byte, err error) {
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, nil, fmt.Errorf("enigma: read nonce: %w", err)
	}
	key, err := SharedKey(k.Private, ioKey, nonce)
	if err != nil {
		return nil, nil, err
	}
	ct, err := Seal(key, append([]byte(codeHash), msg...))
	if err != nil {
		return nil, nil, err
	}
	wire = make([]byte, 0, NonceSize+KeySize+len(ct))
	wire = append(wire, nonce...)
	wire = append(wire, k.Public...)
	return append(wire, ct...), nonce, nil
}

// Decrypt opens an answer encrypted under nonce.
func (k *KeyPair) Decrypt(ioKey, nonce, ciphertext []byte) ([]byte, error) {
	key, err := SharedKey(k.Private, ioKey, nonce)
	if err != nil {
		return nil, err
	}
	return Open(key, ciphertext)
}

// Message is a decrypted wire message as the node sees it.
type Message struct {
	Nonce     []byte
	PeerKey   []byte
	Plaintext []byte
	// Key is the shared key the answer must be sealed with.
	Key []byte
}

// OpenMessage decrypts wire with the node's IO private key.
func OpenMessage(ioPriv, wire []byte) (*Message, error) {
	if len(wire) < NonceSize+KeySize {
		return nil, ErrShortMessage
	}
	m := &Message{
		Nonce:   wire[:NonceSize],
		PeerKey: wire[NonceSize : NonceSize+KeySize],
	}
	key, err := SharedKey(ioPriv, m.PeerKey, m.Nonce)
	if err != nil {
		return nil, err
	}
	if m.Plaintext, err = Open(key, wire[NonceSize+KeySize:]); err != nil {
		return nil, err
	}
	m.Key = key
	return m, nil
}
