package decode

import (
	"encoding/binary"
	"net"

	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// EthernetHeaderLen is the size of an untagged Ethernet II header.
const EthernetHeaderLen = 14

// Ethernet is a decoded Ethernet II frame. Addresses and payload are views
// into the captured bytes.
type Ethernet struct {
	Dst     net.HardwareAddr
	Src     net.HardwareAddr
	Type    layers.EthernetType
	Payload []byte

	inner Layer
}

// DecodeEthernet decodes an Ethernet II header. The ethertype is always
// read in network byte order.
func DecodeEthernet(data []byte) (Layer, error) {
	if len(data) < EthernetHeaderLen {
		return nil, errors.Wrapf(ErrTruncated, "ethernet: %d bytes, need %d", len(data), EthernetHeaderLen)
	}
	return &Ethernet{
		Dst:     net.HardwareAddr(data[0:6:6]),
		Src:     net.HardwareAddr(data[6:12:12]),
		Type:    layers.EthernetType(binary.BigEndian.Uint16(data[12:14])),
		Payload: data[EthernetHeaderLen:],
	}, nil
}

func (e *Ethernet) LayerName() string    { return "Ethernet" }
func (e *Ethernet) LayerPayload() []byte { return e.Payload }
func (e *Ethernet) Nested() Layer        { return e.inner }

func (e *Ethernet) nextKey() (Key, bool) { return EtherKey(e.Type), true }
func (e *Ethernet) attach(l Layer)       { e.inner = l }
