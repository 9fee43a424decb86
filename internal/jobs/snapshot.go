package jobs

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("jobs: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("jobs: zstd decoder initialization failed: " + err.Error())
	}
}

func compressSnapshot(doc []byte) []byte {
	if len(doc) == 0 {
		return nil
	}
	return zstdEncoder.EncodeAll(doc, make([]byte, 0, len(doc)/4))
}

func decompressSnapshot(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	doc, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return doc, nil
}
