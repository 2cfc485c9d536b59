package crypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	// scryptN is the CPU/memory cost parameter for scrypt key derivation (2^15).
	scryptN = 32768

	// scryptR is the block size parameter for scrypt key derivation.
	scryptR = 8

	// scryptP is the parallelization parameter for scrypt key derivation.
	scryptP = 1

	// MasterKeyLen is the derived master key length in bytes.
	MasterKeyLen = 32

	// CollectionKeyLen is the length of a freshly generated collection key.
	CollectionKeyLen = 32

	// DefaultRSABits is the modulus size used by GenerateKeyPair callers.
	DefaultRSABits = 2048
)

// DeriveMasterKey derives the 32-byte master key from the user's password
// and email hash using scrypt. Both inputs are NFKC-normalised first.
func DeriveMasterKey(password, emailHash string) ([]byte, error) {
	password = norm.NFKC.String(password)
	emailHash = norm.NFKC.String(emailHash)

	key, err := scrypt.Key([]byte(password), []byte(emailHash), scryptN, scryptR, scryptP, MasterKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	return key, nil
}

// ZeroKey overwrites key material in place.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

// EmailHash returns the digest used as the master-key salt. The email is
// trimmed and lower-cased so the salt is stable across input styles.
func EmailHash(ctx context.Context, p Provider, email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", fmt.Errorf("email must not be empty")
	}

	return p.Digest(ctx, hex.EncodeToString([]byte(normalized)))
}

// SealPrivateKey encrypts a PEM private key with the master key.
func SealPrivateKey(ctx context.Context, p Provider, masterKey []byte, privateKeyPEM string) (string, error) {
	return p.EncryptBinary(ctx, []byte(privateKeyPEM), hex.EncodeToString(masterKey))
}

// OpenPrivateKey reverses SealPrivateKey.
func OpenPrivateKey(ctx context.Context, p Provider, masterKey []byte, sealed string) (string, error) {
	plain, err := p.DecryptBinary(ctx, sealed, hex.EncodeToString(masterKey))
	if err != nil {
		return "", fmt.Errorf("opening private key: %w", err)
	}

	return string(plain), nil
}

// NewCollectionKey returns a fresh random collection key, hex encoded.
func NewCollectionKey(ctx context.Context, p Provider) (string, error) {
	return p.RandomBytes(ctx, CollectionKeyLen)
}

// GenerateKeyPair creates an RSA keypair and returns PKIX public and PKCS#8
// private keys in PEM form.
func GenerateKeyPair(bits int) (publicPEM, privatePEM string, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", "", fmt.Errorf("generating RSA key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", fmt.Errorf("marshalling private key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshalling public key: %w", err)
	}

	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))

	return publicPEM, privatePEM, nil
}
