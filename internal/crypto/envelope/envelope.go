// Package envelope implements authenticated encryption of sync payloads.
//
// A per-message symmetric key is derived from the chain's private key via
// HKDF-SHA256 with a fresh random salt, and the payload is sealed with
// XChaCha20-Poly1305. The compressed public key rides along as additional
// authenticated data, so a ciphertext cannot be replayed across sync chains.
package envelope

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/uledev/taskchain/internal/errs"
	"github.com/uledev/taskchain/internal/keychain"
)

// Params
const (
	Version   = 1
	Algorithm = "hkdf-sha256+xchacha20poly1305"

	SaltLen = 16
	keyLen  = 32
)

// hkdfInfo domain-separates envelope keys from any other use of the private key.
var hkdfInfo = []byte("taskchain envelope v1")

// Envelope is the self-describing encrypted container for one sync payload.
// Binary fields are base64-encoded so the whole thing travels as JSON.
type Envelope struct {
	Version    int    `json:"version"`
	Algorithm  string `json:"algorithm"`
	PublicKey  string `json:"publicKey"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	AAD        string `json:"aad"`
	Ciphertext string `json:"ciphertext"`
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// deriveKey derives the per-message symmetric key from the private scalar and salt.
func deriveKey(privateKey, salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, privateKey, salt, hkdfInfo)
	key := make([]byte, keyLen)
	if _, err := r.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts plaintext under a fresh salt and nonce, bound to keys.PublicKey.
func Seal(plaintext []byte, keys keychain.KeyPair) (*Envelope, error) {
	salt, err := randBytes(SaltLen)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(keys.PrivateKey, salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := randBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}

	aad := keys.PublicKey
	ct := aead.Seal(nil, nonce, plaintext, aad)

	enc := base64.StdEncoding.EncodeToString
	return &Envelope{
		Version:    Version,
		Algorithm:  Algorithm,
		PublicKey:  keys.PublicKeyHex(),
		Salt:       enc(salt),
		Nonce:      enc(nonce),
		AAD:        enc(aad),
		Ciphertext: enc(ct),
	}, nil
}

// Open re-derives the symmetric key from the embedded salt and the caller's
// private key, then verifies and decrypts. The caller's own public key is
// used as AAD, so envelopes sealed for another chain fail verification with
// errs.ErrTamperedOrWrongKey.
func Open(e *Envelope, keys keychain.KeyPair) ([]byte, error) {
	if e == nil || e.Version != Version || e.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: unsupported version/algorithm", errs.ErrMalformedEnvelope)
	}
	dec := base64.StdEncoding.DecodeString
	salt, err := dec(e.Salt)
	if err != nil || len(salt) != SaltLen {
		return nil, fmt.Errorf("%w: bad salt", errs.ErrMalformedEnvelope)
	}
	nonce, err := dec(e.Nonce)
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: bad nonce", errs.ErrMalformedEnvelope)
	}
	ct, err := dec(e.Ciphertext)
	if err != nil || len(ct) == 0 {
		return nil, fmt.Errorf("%w: bad ciphertext", errs.ErrMalformedEnvelope)
	}
	aad, err := dec(e.AAD)
	if err != nil {
		return nil, fmt.Errorf("%w: bad aad", errs.ErrMalformedEnvelope)
	}
	// The embedded AAD and public key must both name the caller's chain;
	// anything else is tampering or a ciphertext sealed for another chain.
	if !bytes.Equal(aad, keys.PublicKey) || !strings.EqualFold(e.PublicKey, keys.PublicKeyHex()) {
		return nil, errs.ErrTamperedOrWrongKey
	}

	key, err := deriveKey(keys.PrivateKey, salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, errs.ErrTamperedOrWrongKey
	}
	return plaintext, nil
}

// Encode serializes the envelope into the string form stored by the server.
func (e *Envelope) Encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses an encoded envelope. Structural problems surface as
// errs.ErrMalformedEnvelope; authenticity is only checked by Open.
func Decode(s string) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedEnvelope, err)
	}
	if e.Ciphertext == "" {
		return nil, fmt.Errorf("%w: empty ciphertext", errs.ErrMalformedEnvelope)
	}
	return &e, nil
}
