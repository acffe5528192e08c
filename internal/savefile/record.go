package savefile

import (
	"io"
	"time"

	"github.com/pkg/errors"

	"pcapfile/internal/cursor"
	"pcapfile/internal/decode"
)

// RecordHeader is the per-packet header preceding each record's bytes.
type RecordHeader struct {
	TsSec   uint32
	TsFrac  uint32 // microseconds or nanoseconds, see Header.Nanosecond
	CapLen  uint32
	OrigLen uint32
}

// Packet is one record of a savefile: its header, the captured bytes, and
// the decoded layers once they have been asked for.
type Packet struct {
	Index int

	hdr  RecordHeader
	nano bool
	link decode.Key
	raw  []byte

	decoded decode.Layer
	depth   int // budget decoded was computed with, 0 when never decoded
}

// Raw returns the captured bytes exactly as stored in the file. The slice
// is shared with any decoded layers and must not be modified.
func (p *Packet) Raw() []byte {
	return p.raw
}

// Header returns the record header.
func (p *Packet) Header() RecordHeader {
	return p.hdr
}

// CaptureLen is the number of bytes captured for this packet.
func (p *Packet) CaptureLen() uint32 {
	return p.hdr.CapLen
}

// PacketLen is the packet's length on the wire.
func (p *Packet) PacketLen() uint32 {
	return p.hdr.OrigLen
}

// Timestamp returns the whole seconds of the capture time.
func (p *Packet) Timestamp() uint32 {
	return p.hdr.TsSec
}

// TimestampMs returns the capture time in milliseconds since the epoch.
func (p *Packet) TimestampMs() int64 {
	frac := int64(p.hdr.TsFrac) / 1000
	if p.nano {
		frac /= 1000
	}
	return int64(p.hdr.TsSec)*1000 + frac
}

// Time returns the capture time in UTC.
func (p *Packet) Time() time.Time {
	nsec := int64(p.hdr.TsFrac)
	if !p.nano {
		nsec *= int64(time.Microsecond)
	}
	return time.Unix(int64(p.hdr.TsSec), nsec).UTC()
}

// Layer returns the decoded layers, or nil if the packet was not decoded or
// the link layer could not be decoded.
func (p *Packet) Layer() decode.Layer {
	return p.decoded
}

// Decoded reports whether Decode has run and with which depth budget.
func (p *Packet) Decoded() (int, bool) {
	return p.depth, p.depth > 0
}

// Decode decodes the packet with at most layers nested layers and caches the
// result. A later call with the same budget returns the cached chain. Decode
// must not be called concurrently for the same packet.
func (p *Packet) Decode(d *decode.Dispatcher, layers int) decode.Layer {
	if layers <= 0 {
		return nil
	}
	if p.depth == layers {
		return p.decoded
	}
	p.decoded = d.Decode(p.raw, p.link, layers)
	p.depth = layers
	return p.decoded
}

type recordReader struct {
	c    *cursor.Cursor
	hdr  Header
	next int
}

// read returns the next record. It returns io.EOF at a clean record
// boundary and an error wrapping ErrTruncated if the stream ends inside a
// record.
func (rr *recordReader) read() (*Packet, error) {
	start := rr.c.Offset()
	b, err := rr.c.ReadBytes(RecordHeaderLen)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(err, "record %d header at offset %d", rr.next, start)
	}
	order := rr.hdr.ByteOrder()
	rh := RecordHeader{
		TsSec:   order.Uint32(b[0:4]),
		TsFrac:  order.Uint32(b[4:8]),
		CapLen:  order.Uint32(b[8:12]),
		OrigLen: order.Uint32(b[12:16]),
	}

	raw, err := rr.c.ReadBytes(int(rh.CapLen))
	if err != nil {
		if err == io.EOF {
			err = ErrTruncated
		}
		return nil, errors.Wrapf(err, "record %d data (%d bytes) at offset %d", rr.next, rh.CapLen, start)
	}

	p := &Packet{
		Index: rr.next,
		hdr:   rh,
		nano:  rr.hdr.Nanosecond(),
		link:  rr.hdr.LinkKey(),
		raw:   raw,
	}
	rr.next++
	return p, nil
}
