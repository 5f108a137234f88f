// Package crypto implements the CryptoPrimitives of the core: AEAD
// seal/open, a keyed MAC used only for address derivation, and secure random
// byte generation. All three operations are stateless.
//
// Seal/Open use 256-bit AES-GCM, the same construction as
// github.com/asjoyner/shade/drive/encrypt, generalized to take caller-
// supplied additional authenticated data instead of always sealing with a
// nil AAD: the core binds every ciphertext to the address or file id it is
// stored under, so a row moved to a different key fails to authenticate.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/dongdongbh/dsse"
)

// RandomBytes returns n bytes read from a cryptographically strong source.
// It fails only if the entropy source itself is unavailable.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("%w: %s", dsse.ErrEntropy, err)
	}
	return b, nil
}

// Seal encrypts plaintext under key using 256-bit AES-GCM, authenticating
// aad without encrypting it. nonce must be exactly dsse.NonceSize bytes and
// must never be reused under the same key. The returned ciphertext includes
// the 16-byte authentication tag.
func Seal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	if len(key) != dsse.KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", dsse.KeySize, len(key))
	}
	if len(nonce) != dsse.NonceSize {
		return nil, fmt.Errorf("crypto: nonce must be %d bytes, got %d", dsse.NonceSize, len(nonce))
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

// Open verifies and decrypts ciphertext produced by Seal with the same key,
// nonce, and aad. Authentication failure is reported as dsse.ErrAuth;
// callers must not process the returned plaintext when err != nil.
func Open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(key) != dsse.KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", dsse.KeySize, len(key))
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", dsse.ErrAuth, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %s", err)
	}
	return cipher.NewGCM(block)
}

// MAC computes HMAC-SHA256(key, label). The core uses it exactly once per
// node, to derive a fresh server-side address from a freshly sampled node
// key with the domain separator dsse.AddressLabel; it is never used for
// authentication, which is AEAD's role throughout the rest of the protocol.
func MAC(key []byte, label string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(label))
	return h.Sum(nil)
}

// Address derives the server-side address for a freshly generated node key.
// The per-node key MUST be a fresh uniform random sample — never derived
// from a keyword, a document, or any prior key — which is the source of
// this construction's forward privacy: an adversary who has not seen
// nodeKey cannot predict or relate the address it produces to anything
// observed in the past.
func Address(nodeKey []byte) []byte {
	return MAC(nodeKey, dsse.AddressLabel)
}
