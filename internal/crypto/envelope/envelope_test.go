package envelope

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uledev/taskchain/internal/errs"
	"github.com/uledev/taskchain/internal/keychain"
)

const (
	phraseA = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	phraseB = "legal winner thank year wave sausage worth useful legal winner thank yellow"
)

func keysFor(t *testing.T, phrase string) keychain.KeyPair {
	t.Helper()
	k, err := keychain.Derive(phrase)
	require.NoError(t, err)
	return k
}

func TestSealOpen_RoundTrip(t *testing.T) {
	t.Parallel()
	keys := keysFor(t, phraseA)
	plaintext := []byte(`{"tasks":[{"id":"1","title":"milk","completed":false}],"workspaces":[]}`)

	env, err := Seal(plaintext, keys)
	require.NoError(t, err)
	require.Equal(t, Version, env.Version)
	require.Equal(t, Algorithm, env.Algorithm)
	require.Equal(t, keys.PublicKeyHex(), env.PublicKey)

	out, err := Open(env, keys)
	require.NoError(t, err)
	require.Equal(t, plaintext, out)
}

func TestSealOpen_EncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	keys := keysFor(t, phraseA)
	plaintext := []byte(`{"a":1}`)

	env, err := Seal(plaintext, keys)
	require.NoError(t, err)
	s, err := env.Encode()
	require.NoError(t, err)

	decoded, err := Decode(s)
	require.NoError(t, err)
	out, err := Open(decoded, keys)
	require.NoError(t, err)
	require.Equal(t, plaintext, out)
}

func TestSeal_FreshSaltAndNonce(t *testing.T) {
	t.Parallel()
	keys := keysFor(t, phraseA)

	e1, err := Seal([]byte("x"), keys)
	require.NoError(t, err)
	e2, err := Seal([]byte("x"), keys)
	require.NoError(t, err)

	require.NotEqual(t, e1.Salt, e2.Salt)
	require.NotEqual(t, e1.Nonce, e2.Nonce)
	require.NotEqual(t, e1.Ciphertext, e2.Ciphertext)
}

func TestOpen_TamperedCiphertext(t *testing.T) {
	t.Parallel()
	keys := keysFor(t, phraseA)

	env, err := Seal([]byte(`{"a":1}`), keys)
	require.NoError(t, err)

	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)
	for i := range ct {
		flipped := append([]byte(nil), ct...)
		flipped[i] ^= 0x01
		bad := *env
		bad.Ciphertext = base64.StdEncoding.EncodeToString(flipped)

		_, err := Open(&bad, keys)
		if !errors.Is(err, errs.ErrTamperedOrWrongKey) {
			t.Fatalf("byte %d: want ErrTamperedOrWrongKey, got %v", i, err)
		}
	}
}

func TestOpen_TamperedAAD(t *testing.T) {
	t.Parallel()
	keys := keysFor(t, phraseA)

	env, err := Seal([]byte(`{"a":1}`), keys)
	require.NoError(t, err)

	aad, err := base64.StdEncoding.DecodeString(env.AAD)
	require.NoError(t, err)
	for i := range aad {
		flipped := append([]byte(nil), aad...)
		flipped[i] ^= 0xff
		bad := *env
		bad.AAD = base64.StdEncoding.EncodeToString(flipped)

		_, err := Open(&bad, keys)
		if !errors.Is(err, errs.ErrTamperedOrWrongKey) {
			t.Fatalf("byte %d: want ErrTamperedOrWrongKey, got %v", i, err)
		}
	}
}

func TestOpen_TamperedPublicKeyField(t *testing.T) {
	t.Parallel()
	keysA := keysFor(t, phraseA)
	keysB := keysFor(t, phraseB)

	env, err := Seal([]byte(`{"a":1}`), keysA)
	require.NoError(t, err)
	env.PublicKey = keysB.PublicKeyHex()

	_, err = Open(env, keysA)
	require.ErrorIs(t, err, errs.ErrTamperedOrWrongKey)
}

func TestOpen_TamperedNonce(t *testing.T) {
	t.Parallel()
	keys := keysFor(t, phraseA)

	env, err := Seal([]byte("payload"), keys)
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	require.NoError(t, err)
	nonce[0] ^= 0xff
	env.Nonce = base64.StdEncoding.EncodeToString(nonce)

	_, err = Open(env, keys)
	require.ErrorIs(t, err, errs.ErrTamperedOrWrongKey)
}

func TestOpen_CrossChainRejected(t *testing.T) {
	t.Parallel()
	keysA := keysFor(t, phraseA)
	keysB := keysFor(t, phraseB)

	env, err := Seal([]byte("secret"), keysA)
	require.NoError(t, err)

	_, err = Open(env, keysB)
	require.ErrorIs(t, err, errs.ErrTamperedOrWrongKey)
}

func TestOpen_Malformed(t *testing.T) {
	t.Parallel()
	keys := keysFor(t, phraseA)
	good, err := Seal([]byte("x"), keys)
	require.NoError(t, err)

	cases := map[string]func(e *Envelope){
		"nil envelope":    nil,
		"wrong version":   func(e *Envelope) { e.Version = 99 },
		"wrong algorithm": func(e *Envelope) { e.Algorithm = "rot13" },
		"bad salt b64":    func(e *Envelope) { e.Salt = "!!" },
		"short salt":      func(e *Envelope) { e.Salt = base64.StdEncoding.EncodeToString([]byte{1, 2}) },
		"bad nonce":       func(e *Envelope) { e.Nonce = "!!" },
		"empty cipher":    func(e *Envelope) { e.Ciphertext = "" },
		"bad aad b64":     func(e *Envelope) { e.AAD = "!!" },
	}
	for name, mutate := range cases {
		var env *Envelope
		if mutate != nil {
			c := *good
			mutate(&c)
			env = &c
		}
		_, err := Open(env, keys)
		if !errors.Is(err, errs.ErrMalformedEnvelope) {
			t.Fatalf("%s: want ErrMalformedEnvelope, got %v", name, err)
		}
	}
}

func TestDecode_Garbage(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "not json", `{"version":1}`} {
		_, err := Decode(s)
		require.ErrorIs(t, err, errs.ErrMalformedEnvelope, s)
	}
}
