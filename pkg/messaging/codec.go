package messaging

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Payloads are base64 text on the wire. Large payloads may additionally be
// zstd-compressed before encoding, marked by the "zstd:" prefix.
const zstdPrefix = "zstd:"

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// EncodePayload encodes raw bytes for transport. With compress set, the
// bytes are zstd-compressed first and the result prefixed accordingly.
func EncodePayload(data []byte, compress bool) string {
	if compress {
		return zstdPrefix + base64.StdEncoding.EncodeToString(zstdEncoder.EncodeAll(data, nil))
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodePayload reverses EncodePayload. A malformed payload can never
// become valid, so callers treat the error as terminal for that payload.
func DecodePayload(payload string) ([]byte, error) {
	compressed := strings.HasPrefix(payload, zstdPrefix)
	if compressed {
		payload = strings.TrimPrefix(payload, zstdPrefix)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	if !compressed {
		return data, nil
	}
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress zstd payload: %w", err)
	}
	return raw, nil
}
