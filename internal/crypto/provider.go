// Package crypto holds the cryptographic collaborator used by the key
// hierarchy and payload pipeline, plus master-key derivation.
//
// Callers depend on the Provider interface only. Native is the default
// implementation:
//
//   - Digest: hex(SHA-256(hexInput))
//   - Asymmetric: RSA-OAEP with SHA-256, PEM keys, hex ciphertext
//   - Binary: AES-256-GCM with a random 12-byte IV, serialised as
//     "AES-GCM:<iv hex>:<ciphertext+tag hex>"
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"strings"
)

// AlgorithmAESGCM is the algorithm tag written by Native.EncryptBinary.
const AlgorithmAESGCM = "AES-GCM"

// symmetricKeyLen is the required length of a decoded binary-cipher key.
const symmetricKeyLen = 32

// Provider is the crypto contract the rest of the client relies on.
// All string outputs other than AsymmetricDecrypt are hex or the
// "ALG:IV:HEX" payload form.
type Provider interface {
	Digest(ctx context.Context, hexInput string) (string, error)
	RandomBytes(ctx context.Context, length int) (string, error)
	AsymmetricEncrypt(ctx context.Context, plaintext, publicKeyPEM string) (string, error)
	AsymmetricDecrypt(ctx context.Context, ciphertext, privateKeyPEM string) (string, error)
	EncryptBinary(ctx context.Context, data []byte, hexKey string) (string, error)
	DecryptBinary(ctx context.Context, payload, hexKey string) ([]byte, error)
}

// Native implements Provider with the Go standard crypto packages.
type Native struct {
	rand io.Reader
}

// NewNative returns a Provider backed by crypto/rand.
func NewNative() *Native {
	return &Native{rand: rand.Reader}
}

// Digest returns hex(SHA-256(hexInput)).
func (n *Native) Digest(ctx context.Context, hexInput string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h := sha256.Sum256([]byte(hexInput))

	return hex.EncodeToString(h[:]), nil
}

// RandomBytes returns length random bytes, hex encoded.
func (n *Native) RandomBytes(ctx context.Context, length int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if length < 0 {
		return "", fmt.Errorf("random length must not be negative, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(n.rand, buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// AsymmetricEncrypt encrypts plaintext to a PEM public key.
func (n *Native) AsymmetricEncrypt(ctx context.Context, plaintext, publicKeyPEM string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pub, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return "", err
	}

	ct, err := rsa.EncryptOAEP(sha256.New(), n.rand, pub, []byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("encrypting with public key: %w", err)
	}

	return hex.EncodeToString(ct), nil
}

// AsymmetricDecrypt decrypts hex ciphertext with a PEM private key.
func (n *Native) AsymmetricDecrypt(ctx context.Context, ciphertext, privateKeyPEM string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ct, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding hex: %w", err)
	}

	priv, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}

	plain, err := rsa.DecryptOAEP(sha256.New(), nil, priv, ct, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting with private key: %w", err)
	}

	return string(plain), nil
}

// EncryptBinary encrypts data with a 32-byte hex key.
func (n *Native) EncryptBinary(ctx context.Context, data []byte, hexKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	gcm, err := newGCM(hexKey)
	if err != nil {
		return "", err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(n.rand, iv); err != nil {
		return "", fmt.Errorf("generating IV: %w", err)
	}

	ct := gcm.Seal(nil, iv, data, nil)

	return JoinPayload(AlgorithmAESGCM, hex.EncodeToString(iv), hex.EncodeToString(ct)), nil
}

// DecryptBinary reverses EncryptBinary.
func (n *Native) DecryptBinary(ctx context.Context, payload, hexKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	alg, ivHex, ctHex, err := SplitPayload(payload)
	if err != nil {
		return nil, err
	}

	if alg != AlgorithmAESGCM {
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}

	gcm, err := newGCM(hexKey)
	if err != nil {
		return nil, err
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("decoding IV: %w", err)
	}

	if len(iv) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid IV length %d: expected %d bytes", len(iv), gcm.NonceSize())
	}

	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}

	plain, err := gcm.Open(nil, iv, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting content: %w", err)
	}

	if plain == nil {
		plain = []byte{}
	}

	return plain, nil
}

// JoinPayload builds the "ALG:IV:HEX" form.
func JoinPayload(algorithm, iv, bytesHex string) string {
	return algorithm + ":" + iv + ":" + bytesHex
}

// SplitPayload parses the "ALG:IV:HEX" form.
func SplitPayload(payload string) (algorithm, iv, bytesHex string, err error) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("malformed encrypted payload: expected ALG:IV:HEX")
	}

	return parts[0], parts[1], parts[2], nil
}

func newGCM(hexKey string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	defer ZeroKey(key)

	if len(key) != symmetricKeyLen {
		return nil, fmt.Errorf("invalid key length %d: expected %d bytes", len(key), symmetricKeyLen)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return gcm, nil
}

func parsePublicKey(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("public key is not PEM encoded")
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, not RSA", key)
		}

		return pub, nil
	}

	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	return pub, nil
}

func parsePrivateKey(data string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("private key is not PEM encoded")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, not RSA", key)
		}

		return priv, nil
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return priv, nil
}
