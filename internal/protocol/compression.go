package protocol

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	frameRaw  byte = 0
	frameZstd byte = 1
)

// CompressingSerializer сжимает zstd кадры длиннее порога.
// Первый байт кадра: 0: без сжатия, 1: zstd.
type CompressingSerializer struct {
	inner     Serializer
	threshold int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewCompressingSerializer оборачивает inner. threshold <= 0 сжимает всё.
func NewCompressingSerializer(inner Serializer, threshold int) (*CompressingSerializer, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("создание компрессора: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("создание декомпрессора: %w", err)
	}
	return &CompressingSerializer{inner: inner, threshold: threshold, encoder: enc, decoder: dec}, nil
}

func (c *CompressingSerializer) Encode(p Packet) ([]byte, error) {
	data, err := c.inner.Encode(p)
	if err != nil || len(data) == 0 {
		return data, err
	}
	if len(data) < c.threshold {
		return append([]byte{frameRaw}, data...), nil
	}
	out := make([]byte, 1, len(data)/2+1)
	out[0] = frameZstd
	return c.encoder.EncodeAll(data, out), nil
}

func (c *CompressingSerializer) Decode(data []byte) (Packet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("пустой кадр")
	}
	payload := data[1:]
	switch data[0] {
	case frameRaw:
	case frameZstd:
		var err error
		payload, err = c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompression failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("неизвестный флаг кадра %d", data[0])
	}
	return c.inner.Decode(payload)
}

// Close освобождает ресурсы декодера.
func (c *CompressingSerializer) Close() {
	c.decoder.Close()
	_ = c.encoder.Close()
}

// NewSerializer собирает кодек по имени из конфигурации.
func NewSerializer(codec string, compressionThreshold int) (Serializer, error) {
	var base Serializer
	switch codec {
	case "", "json":
		base = NewJSONSerializer()
	case "proto":
		base = NewProtoSerializer()
	default:
		return nil, fmt.Errorf("неизвестный кодек %q", codec)
	}
	if compressionThreshold <= 0 {
		return base, nil
	}
	return NewCompressingSerializer(base, compressionThreshold)
}
