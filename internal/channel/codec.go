package channel

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Payload flag bytes. The first plaintext byte says how the rest is framed.
const (
	frameRaw  = 0x00
	frameZstd = 0x01
)

// maxDecodedSize bounds a single decompressed payload. Compressed frames
// arrive from extensions, so the decoder carries its own limit rather than
// trusting a tiny ciphertext to expand unbounded.
const maxDecodedSize = 16 << 20

// Codec encodes call payloads for the channel: sonic JSON, zstd-compressed
// when the encoded form exceeds the threshold.
type Codec struct {
	threshold int
	enc       *zstd.Encoder
	dec       *zstd.Decoder
}

// NewCodec creates a codec with the given compression threshold in bytes.
func NewCodec(threshold int) (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return &Codec{threshold: threshold, enc: enc, dec: dec}, nil
}

// Encode marshals v and frames it, compressing above the threshold.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if len(data) > c.threshold {
		out := make([]byte, 1, len(data)/2+1)
		out[0] = frameZstd
		return c.enc.EncodeAll(data, out), nil
	}
	out := make([]byte, 1+len(data))
	out[0] = frameRaw
	copy(out[1:], data)
	return out, nil
}

// Decode unframes and unmarshals a payload into v.
func (c *Codec) Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", types.ErrMalformedEnvelope)
	}
	body := data[1:]
	switch data[0] {
	case frameRaw:
	case frameZstd:
		decoded, err := c.dec.DecodeAll(body, nil)
		if err != nil {
			return fmt.Errorf("%w: bad compressed payload", types.ErrMalformedEnvelope)
		}
		body = decoded
	default:
		return fmt.Errorf("%w: unknown frame flag 0x%02x", types.ErrMalformedEnvelope, data[0])
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: payload decode: %v", types.ErrMalformedEnvelope, err)
	}
	return nil
}
