// Package statecodec compacts per-source analysis state for storage.
//
// Values are encoded as JSON (map keys sorted, so output is deterministic) and
// compressed with zstd. An empty blob decodes to the zero value so a source
// without history starts cold.
package statecodec

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	initOnce sync.Once
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	initErr  error
)

func coders() (*zstd.Encoder, *zstd.Decoder, error) {
	initOnce.Do(func() {
		encoder, initErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
		if initErr != nil {
			return
		}
		decoder, initErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return encoder, decoder, initErr
}

// Encode compacts v
func Encode(v interface{}) ([]byte, error) {
	enc, _, err := coders()
	if err != nil {
		return nil, fmt.Errorf("failed to init zstd: %w", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode expands blob into v. A nil or empty blob leaves v untouched.
func Decode(blob []byte, v interface{}) error {
	if len(blob) == 0 {
		return nil
	}
	_, dec, err := coders()
	if err != nil {
		return fmt.Errorf("failed to init zstd: %w", err)
	}
	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return fmt.Errorf("failed to decompress state: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return nil
}
