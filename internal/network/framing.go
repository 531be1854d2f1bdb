package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const lengthPrefixSize = 4

var ErrFrameTooLarge = errors.New("network: frame too large")

// Options tunes a transport connection.
type Options struct {
	MaxFrameBytes int
	SendQueue     int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxFrameBytes: 64 * 1024,
		SendQueue:     256,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = d.MaxFrameBytes
	}
	if o.SendQueue <= 0 {
		o.SendQueue = d.SendQueue
	}
	return o
}

// writeFrame writes one length-prefixed frame.
func writeFrame(w io.Writer, data []byte, max int) error {
	if len(data) > max {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), max)
	}
	buf := make([]byte, lengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[lengthPrefixSize:], data)
	_, err := w.Write(buf)
	return err
}

// readFrame reads one length-prefixed frame.
func readFrame(r io.Reader, max int) ([]byte, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if uint64(n) > uint64(max) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, max)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
