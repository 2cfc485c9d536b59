// Package payload turns plaintext into upload-ready ciphertext and back.
//
// Guards run in a fixed order: the collection-key scope check before any
// crypto call, the unchanged-content check right after the digest, and the
// size check right after encryption. Every guard fails before the caller
// makes a network request.
package payload

import (
	"context"
	"fmt"

	"github.com/alexjbarnes/sealbox/internal/crypto"
	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/models"
)

//go:generate mockgen -destination=mock_provider_test.go -package=payload github.com/alexjbarnes/sealbox/internal/crypto Provider

// DefaultMaxEncryptedSize is the largest ciphertext the server accepts.
const DefaultMaxEncryptedSize int64 = 10 * 1024 * 1024

// Options tunes a Pipeline. Zero values select the defaults.
type Options struct {
	MaxEncryptedSize int64
	HexChunkSize     int
}

// Pipeline encrypts and decrypts file contents with collection keys.
type Pipeline struct {
	provider  crypto.Provider
	maxSize   int64
	chunkSize int
}

// Sealed is the output of the encrypt path.
type Sealed struct {
	Content       models.EncryptedContent
	ContentDigest string
}

// NewPipeline creates a Pipeline backed by provider.
func NewPipeline(provider crypto.Provider, opts Options) *Pipeline {
	if opts.MaxEncryptedSize <= 0 {
		opts.MaxEncryptedSize = DefaultMaxEncryptedSize
	}

	if opts.HexChunkSize <= 0 {
		opts.HexChunkSize = crypto.DefaultHexChunkSize
	}

	return &Pipeline{
		provider:  provider,
		maxSize:   opts.MaxEncryptedSize,
		chunkSize: opts.HexChunkSize,
	}
}

// MaxEncryptedSize returns the configured upload limit.
func (p *Pipeline) MaxEncryptedSize() int64 {
	return p.maxSize
}

// CheckScope fails when key does not belong to collectionID.
func CheckScope(op, collectionID string, key models.CollectionEncryptionKey) error {
	if key.CollectionID != collectionID {
		return apperrors.Newf(apperrors.CollectionKeyMismatch, op,
			"key belongs to collection %q, target is %q", key.CollectionID, collectionID)
	}

	return nil
}

// Encrypt prepares data for a new-file upload into collectionID.
func (p *Pipeline) Encrypt(ctx context.Context, collectionID string, key models.CollectionEncryptionKey, data []byte) (Sealed, error) {
	const op = "encrypt"

	if err := CheckScope(op, collectionID, key); err != nil {
		return Sealed{}, err
	}

	digest, err := p.Digest(ctx, data)
	if err != nil {
		return Sealed{}, err
	}

	return p.seal(ctx, op, key, data, digest)
}

// EncryptVersion prepares data for a new-version upload. It fails with
// FileContentNotChanged when data hashes to latestDigest.
func (p *Pipeline) EncryptVersion(ctx context.Context, collectionID string, key models.CollectionEncryptionKey, data []byte, latestDigest string) (Sealed, error) {
	const op = "encrypt version"

	if err := CheckScope(op, collectionID, key); err != nil {
		return Sealed{}, err
	}

	digest, err := p.Digest(ctx, data)
	if err != nil {
		return Sealed{}, err
	}

	if latestDigest != "" && digest == latestDigest {
		return Sealed{}, apperrors.Newf(apperrors.FileContentNotChanged, op, "digest %s", digest)
	}

	return p.seal(ctx, op, key, data, digest)
}

// Digest hashes the chunked hex encoding of data.
func (p *Pipeline) Digest(ctx context.Context, data []byte) (string, error) {
	hexData, err := crypto.EncodeHexChunked(ctx, data, p.chunkSize)
	if err != nil {
		return "", err
	}

	digest, err := p.provider.Digest(ctx, hexData)
	if err != nil {
		return "", fmt.Errorf("computing content digest: %w", err)
	}

	return digest, nil
}

func (p *Pipeline) seal(ctx context.Context, op string, key models.CollectionEncryptionKey, data []byte, digest string) (Sealed, error) {
	payload, err := p.provider.EncryptBinary(ctx, data, key.Key)
	if err != nil {
		return Sealed{}, fmt.Errorf("%s: %w", op, err)
	}

	alg, iv, ct, err := crypto.SplitPayload(payload)
	if err != nil {
		return Sealed{}, fmt.Errorf("%s: %w", op, err)
	}

	size := int64(len(ct) / 2)
	if size > p.maxSize {
		return Sealed{}, &apperrors.TooLargeError{Actual: size, Max: p.maxSize}
	}

	return Sealed{
		Content: models.EncryptedContent{
			Algorithm:            alg,
			IV:                   iv,
			EncryptionKeyVersion: key.Version,
			Bytes:                ct,
		},
		ContentDigest: digest,
	}, nil
}

// Decrypt opens downloaded content. Plaintext is returned only when the
// key version matches and the recomputed digest equals fc.Digest.
func (p *Pipeline) Decrypt(ctx context.Context, collectionID string, key models.CollectionEncryptionKey, fc *models.FileContent) ([]byte, error) {
	const op = "decrypt"

	if err := CheckScope(op, collectionID, key); err != nil {
		return nil, err
	}

	if fc.Content.EncryptionKeyVersion != key.Version {
		return nil, apperrors.Newf(apperrors.KeyVersionMismatch, op,
			"content version %d, key version %d", fc.Content.EncryptionKeyVersion, key.Version)
	}

	payload := crypto.JoinPayload(fc.Content.Algorithm, fc.Content.IV, fc.Content.Bytes)

	plain, err := p.provider.DecryptBinary(ctx, payload, key.Key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	digest, err := p.Digest(ctx, plain)
	if err != nil {
		return nil, err
	}

	if digest != fc.Digest {
		return nil, apperrors.Newf(apperrors.DigestMismatch, op, "expected %s, computed %s", fc.Digest, digest)
	}

	return plain, nil
}
