package savefile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"

	"pcapfile/internal/cursor"
	"pcapfile/internal/decode"
)

const (
	// MagicMicroseconds marks a savefile with microsecond timestamps.
	MagicMicroseconds uint32 = 0xa1b2c3d4
	// MagicNanoseconds marks a savefile with nanosecond timestamps.
	MagicNanoseconds uint32 = 0xa1b23c4d

	HeaderLen       = 24 // global header
	RecordHeaderLen = 16 // per-packet record header
)

var (
	// ErrInvalidMagic means the first four bytes match no known magic in
	// either byte order.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrTruncated means the stream ended inside a header or record.
	ErrTruncated = cursor.ErrTruncated
)

// Header is the savefile global header.
type Header struct {
	Magic    uint32 // in the file's byte order, so always one of the Magic constants
	Major    uint16
	Minor    uint16
	ThisZone int32
	SigFigs  uint32
	SnapLen  uint32
	LinkType uint32

	order binary.ByteOrder
}

// ReadHeader reads the global header from c and switches c to the byte
// order the magic number selects.
func ReadHeader(c *cursor.Cursor) (Header, error) {
	var h Header
	raw, err := c.ReadBytes(4)
	if err == io.EOF {
		err = ErrTruncated
	}
	if err != nil {
		return h, errors.Wrap(err, "savefile header: magic")
	}
	switch {
	case isMagic(binary.LittleEndian.Uint32(raw)):
		h.order = binary.LittleEndian
	case isMagic(binary.BigEndian.Uint32(raw)):
		h.order = binary.BigEndian
	default:
		return h, errors.Wrapf(ErrInvalidMagic, "savefile header: % x", raw)
	}
	h.Magic = h.order.Uint32(raw)
	c.SetOrder(h.order)

	fields := []func() error{
		func() (err error) { h.Major, err = c.ReadU16(); return },
		func() (err error) { h.Minor, err = c.ReadU16(); return },
		func() (err error) { h.ThisZone, err = c.ReadI32(); return },
		func() (err error) { h.SigFigs, err = c.ReadU32(); return },
		func() (err error) { h.SnapLen, err = c.ReadU32(); return },
		func() (err error) { h.LinkType, err = c.ReadU32(); return },
	}
	for _, read := range fields {
		if err := read(); err != nil {
			return h, errors.Wrap(err, "savefile header")
		}
	}
	return h, nil
}

func isMagic(v uint32) bool {
	return v == MagicMicroseconds || v == MagicNanoseconds
}

// ByteOrder returns the byte order of the header and record fields.
func (h Header) ByteOrder() binary.ByteOrder {
	return h.order
}

// Nanosecond reports whether record timestamps carry nanoseconds rather
// than microseconds.
func (h Header) Nanosecond() bool {
	return h.Magic == MagicNanoseconds
}

// Link returns the link type as a gopacket type, for naming and for the
// standard link types that fit its range.
func (h Header) Link() layers.LinkType {
	return layers.LinkType(h.LinkType)
}

// LinkKey is the dispatch key for the outermost layer of every record.
func (h Header) LinkKey() decode.Key {
	return decode.Key{Space: decode.SpaceLinkType, ID: h.LinkType}
}

func (h Header) String() string {
	return fmt.Sprintf("pcap v%d.%d %s snaplen=%d linktype=%d", h.Major, h.Minor, h.ByteOrder(), h.SnapLen, h.LinkType)
}
