package vault

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/forest6511/coffre/pkg/crypto"
)

// Artifact layout: salt ‖ nonce ‖ ciphertext-with-tag. There is no header,
// magic number or version byte.
const (
	saltOffset  = 0
	nonceOffset = saltOffset + crypto.SaltLength
	bodyOffset  = nonceOffset + crypto.NonceLength

	// HeaderLength is the smallest artifact size Decode will look at.
	HeaderLength = bodyOffset
)

// Plaintext is the decrypted content of a vault: entries in insertion order.
type Plaintext struct {
	Entries []Entry `json:"entries"`
}

// Encode encrypts p under password and returns the artifact. A fresh salt and
// nonce are drawn on every call, so encoding the same input twice yields
// different artifacts.
func Encode(p *Plaintext, password string) ([]byte, error) {
	doc := Plaintext{Entries: []Entry{}}
	if p != nil && p.Entries != nil {
		doc.Entries = p.Entries
	}

	data, err := json.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to serialize entries: %w", err)
	}
	defer crypto.SecureWipe(data)

	salt, err := crypto.RandomBytes(crypto.SaltLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}

	key := deriveKey(password, salt)
	defer crypto.SecureWipe(key)

	ciphertext, nonce, err := crypto.Encrypt(key, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}

	artifact := make([]byte, 0, HeaderLength+len(ciphertext))
	artifact = append(artifact, salt...)
	artifact = append(artifact, nonce...)
	artifact = append(artifact, ciphertext...)
	return artifact, nil
}

// NewEmpty returns the artifact of a vault with no entries.
func NewEmpty(password string) ([]byte, error) {
	return Encode(&Plaintext{Entries: []Entry{}}, password)
}

// Decode opens an artifact produced by Encode.
//
// Artifacts shorter than HeaderLength fail with ErrIntegrity before any key
// derivation. Every other failure, whether a wrong password, a modified byte
// or undecodable content, is ErrAuthentication.
func Decode(artifact []byte, password string) (*Plaintext, error) {
	if len(artifact) < HeaderLength {
		return nil, ErrIntegrity
	}

	salt := artifact[saltOffset:nonceOffset]
	nonce := artifact[nonceOffset:bodyOffset]
	ciphertext := artifact[bodyOffset:]

	key := deriveKey(password, salt)
	defer crypto.SecureWipe(key)

	data, err := crypto.Decrypt(key, ciphertext, nonce)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, ErrAuthentication
		}
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	defer crypto.SecureWipe(data)

	var p Plaintext
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrAuthentication
	}
	if p.Entries == nil {
		p.Entries = []Entry{}
	}
	return &p, nil
}

func deriveKey(password string, salt []byte) []byte {
	pw := []byte(password)
	defer crypto.SecureWipe(pw)
	return crypto.DeriveKey(pw, salt)
}
