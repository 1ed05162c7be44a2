// Package keychain derives the sync-chain keypair from a recovery phrase.
package keychain

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/uledev/taskchain/internal/errs"
)

// PrivateKeyLen is the length of a serialized private scalar.
const PrivateKeyLen = 32

// derivation path m/44'/0'/0'/0/0
var derivationPath = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 0,
	hdkeychain.HardenedKeyStart + 0,
	0,
	0,
}

// KeyPair is the deterministic secp256k1 keypair of a sync chain.
// PublicKey is the compressed point; its hex form doubles as the chain
// identifier and transport credential. PrivateKey never leaves the process.
type KeyPair struct {
	PrivateKey []byte // 32 bytes
	PublicKey  []byte // 33 bytes, compressed
}

// PublicKeyHex returns the chain identifier presented to the transport.
func (k KeyPair) PublicKeyHex() string { return hex.EncodeToString(k.PublicKey) }

// Derive turns a BIP-39 recovery phrase into the chain keypair.
// Pure and deterministic: the same phrase always yields the same keypair.
// Returns errs.ErrInvalidPhrase for malformed mnemonics.
func Derive(phrase string) (KeyPair, error) {
	seed, err := bip39.NewSeedWithErrorChecking(phrase, "")
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", errs.ErrInvalidPhrase, err)
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", errs.ErrInvalidPhrase, err)
	}
	for _, step := range derivationPath {
		if key, err = key.Derive(step); err != nil {
			return KeyPair{}, fmt.Errorf("%w: %v", errs.ErrInvalidPhrase, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", errs.ErrInvalidPhrase, err)
	}
	return KeyPair{
		PrivateKey: priv.Serialize(),
		PublicKey:  priv.PubKey().SerializeCompressed(),
	}, nil
}

// NewPhrase generates a fresh 24-word recovery phrase (256-bit entropy).
func NewPhrase() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}
