package network

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize предел размера одного кадра потокового транспорта.
const MaxFrameSize = 1 << 20

// WriteFrame пишет кадр с 4-байтовым префиксом длины (little endian).
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d байт", ErrFrameTooLarge, len(frame))
	}
	buf := make([]byte, 4+len(frame))
	binary.LittleEndian.PutUint32(buf, uint32(len(frame)))
	copy(buf[4:], frame)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame читает один кадр, записанный WriteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d байт", ErrFrameTooLarge, size)
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
