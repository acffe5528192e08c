package decode

import (
	"encoding/binary"
	"net"

	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// IPv4MinHeaderLen is the size of an IPv4 header without options.
const IPv4MinHeaderLen = 20

// IPv4 is a decoded IPv4 header. Multi-byte fields are read in network byte
// order; addresses, options and payload are views into the captured bytes.
type IPv4 struct {
	Version    uint8
	IHL        uint8 // header length in 32-bit words
	TOS        uint8
	Length     uint16
	ID         uint16
	Flags      layers.IPv4Flag
	FragOffset uint16
	TTL        uint8
	Protocol   layers.IPProtocol
	Checksum   uint16
	Src        net.IP
	Dst        net.IP
	Options    []byte
	Payload    []byte

	inner Layer
}

// DecodeIPv4 decodes an IPv4 header, including options.
func DecodeIPv4(data []byte) (Layer, error) {
	if len(data) < IPv4MinHeaderLen {
		return nil, errors.Wrapf(ErrTruncated, "ipv4: %d bytes, need %d", len(data), IPv4MinHeaderLen)
	}
	ip := &IPv4{
		Version:  data[0] >> 4,
		IHL:      data[0] & 0x0f,
		TOS:      data[1],
		Length:   binary.BigEndian.Uint16(data[2:4]),
		ID:       binary.BigEndian.Uint16(data[4:6]),
		TTL:      data[8],
		Protocol: layers.IPProtocol(data[9]),
		Checksum: binary.BigEndian.Uint16(data[10:12]),
		Src:      net.IP(data[12:16:16]),
		Dst:      net.IP(data[16:20:20]),
	}
	ff := binary.BigEndian.Uint16(data[6:8])
	ip.Flags = layers.IPv4Flag(ff >> 13)
	ip.FragOffset = ff & 0x1fff

	hlen := ip.HeaderLen()
	if hlen < IPv4MinHeaderLen {
		return nil, errors.Wrapf(ErrMalformed, "ipv4: header length %d words", ip.IHL)
	}
	if hlen > len(data) {
		return nil, errors.Wrapf(ErrTruncated, "ipv4: header length %d, have %d bytes", hlen, len(data))
	}
	ip.Options = data[IPv4MinHeaderLen:hlen:hlen]
	ip.Payload = data[hlen:]
	return ip, nil
}

// HeaderLen returns the header length in bytes.
func (ip *IPv4) HeaderLen() int {
	return int(ip.IHL) * 4
}

func (ip *IPv4) LayerName() string    { return "IPv4" }
func (ip *IPv4) LayerPayload() []byte { return ip.Payload }
func (ip *IPv4) Nested() Layer        { return ip.inner }

// Non-first fragments carry no next-protocol header.
func (ip *IPv4) nextKey() (Key, bool) {
	if ip.FragOffset != 0 {
		return Key{}, false
	}
	return ProtoKey(ip.Protocol), true
}

func (ip *IPv4) attach(l Layer) { ip.inner = l }
