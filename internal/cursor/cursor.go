// Package cursor provides a sequential, bounds-checked reader over a byte
// stream with a fixed byte order.
package cursor

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrTruncated is returned when fewer bytes remain than a read requested.
var ErrTruncated = errors.New("truncated")

// chunk bounds how much is preallocated for a single ReadBytes call, so a
// corrupt length field cannot force a huge allocation before the stream runs dry.
const chunk = 64 << 10

// Cursor reads fixed-width integers and byte runs in order. It is not safe
// for concurrent use.
type Cursor struct {
	r     io.Reader
	order binary.ByteOrder
	off   int64
}

// New returns a Cursor over r. The byte order defaults to little endian until
// SetOrder is called.
func New(r io.Reader) *Cursor {
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	return &Cursor{r: r, order: binary.LittleEndian}
}

// FromBytes returns a Cursor over b using the given byte order.
func FromBytes(b []byte, order binary.ByteOrder) *Cursor {
	return &Cursor{r: bytes.NewReader(b), order: order}
}

// SetOrder fixes the byte order applied to all subsequent integer reads.
func (c *Cursor) SetOrder(order binary.ByteOrder) {
	c.order = order
}

// Order returns the byte order in use.
func (c *Cursor) Order() binary.ByteOrder {
	return c.order
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int64 {
	return c.off
}

// ReadBytes reads exactly n bytes. It returns io.EOF if the stream was
// already exhausted, and an error wrapping ErrTruncated if it ended partway.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Errorf("cursor: negative read length %d", n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	if n <= chunk {
		buf := make([]byte, n)
		read, err := io.ReadFull(c.r, buf)
		c.off += int64(read)
		if err := c.readErr(read, n, err); err != nil {
			return nil, err
		}
		return buf, nil
	}

	var buf bytes.Buffer
	buf.Grow(chunk)
	read, err := io.CopyN(&buf, c.r, int64(n))
	c.off += read
	if err == io.EOF {
		if read == 0 {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(ErrTruncated, "want %d bytes at offset %d, got %d", n, c.off-read, read)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadU8 reads a single byte.
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads an unsigned 16-bit integer in the cursor's byte order.
func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.fixed(2)
	if err != nil {
		return 0, err
	}
	return c.order.Uint16(b), nil
}

// ReadU32 reads an unsigned 32-bit integer in the cursor's byte order.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.fixed(4)
	if err != nil {
		return 0, err
	}
	return c.order.Uint32(b), nil
}

// ReadI32 reads a signed 32-bit integer in the cursor's byte order.
func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// fixed is ReadBytes for integer fields: a clean EOF is still a truncation,
// since the caller asked for a value that is not there.
func (c *Cursor) fixed(n int) ([]byte, error) {
	b, err := c.ReadBytes(n)
	if err == io.EOF {
		return nil, errors.Wrapf(ErrTruncated, "want %d bytes at offset %d, got 0", n, c.off)
	}
	return b, err
}

func (c *Cursor) readErr(read, want int, err error) error {
	switch {
	case err == nil:
		return nil
	case err == io.EOF:
		return io.EOF
	case err == io.ErrUnexpectedEOF:
		return errors.Wrapf(ErrTruncated, "want %d bytes at offset %d, got %d", want, c.off-int64(read), read)
	default:
		return errors.Wrap(err, "cursor read")
	}
}
