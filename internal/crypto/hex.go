package crypto

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
)

// DefaultHexChunkSize is how many input bytes are encoded between yields.
const DefaultHexChunkSize = 100 * 1024

// EncodeHexChunked hex-encodes data in chunks of chunkSize input bytes,
// yielding the processor between chunks so a large buffer does not starve
// other goroutines. The result equals hex.EncodeToString(data) for every
// chunkSize >= 1. Cancellation is observed between chunks.
func EncodeHexChunked(ctx context.Context, data []byte, chunkSize int) (string, error) {
	if chunkSize < 1 {
		return "", fmt.Errorf("hex chunk size must be positive, got %d", chunkSize)
	}

	var b strings.Builder
	b.Grow(hex.EncodedLen(len(data)))

	buf := make([]byte, hex.EncodedLen(min(chunkSize, len(data))))

	for off := 0; off < len(data); off += chunkSize {
		if off > 0 {
			runtime.Gosched()
		}

		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("hex encoding interrupted at offset %d: %w", off, err)
		}

		end := min(off+chunkSize, len(data))
		n := hex.Encode(buf, data[off:end])
		b.Write(buf[:n])
	}

	return b.String(), nil
}
