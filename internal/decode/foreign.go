package decode

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// Foreign is a layer decoded by a gopacket decoder rather than by this
// package. Decoded holds the concrete gopacket type (*layers.TCP, ...).
type Foreign struct {
	Decoded gopacket.Layer

	next    Key
	hasNext bool
	inner   Layer
}

func (f *Foreign) LayerName() string    { return f.Decoded.LayerType().String() }
func (f *Foreign) LayerPayload() []byte { return f.Decoded.LayerPayload() }
func (f *Foreign) Nested() Layer        { return f.inner }

func (f *Foreign) nextKey() (Key, bool) { return f.next, f.hasNext }
func (f *Foreign) attach(l Layer)       { f.inner = l }

// GopacketLayer is a gopacket layer that can decode itself from bytes.
type GopacketLayer interface {
	gopacket.Layer
	DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error
}

// FromGopacket adapts a gopacket layer constructor into a Decoder. next, if
// non-nil, reports the key of the payload once the layer is decoded.
func FromGopacket(newLayer func() GopacketLayer, next func(gopacket.Layer) (Key, bool)) Decoder {
	return func(data []byte) (Layer, error) {
		dl := newLayer()
		if err := dl.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "%s: %v", dl.LayerType(), err)
		}
		f := &Foreign{Decoded: dl}
		if next != nil {
			f.next, f.hasNext = next(dl)
		}
		return f, nil
	}
}

// RegisterGopacket installs gopacket-backed decoders for the protocols
// commonly found around Ethernet and IPv4: 802.1Q, ARP, IPv6, TCP, UDP and
// ICMPv4.
func RegisterGopacket(d *Dispatcher) {
	d.Register(EtherKey(layers.EthernetTypeDot1Q), FromGopacket(
		func() GopacketLayer { return &layers.Dot1Q{} },
		func(l gopacket.Layer) (Key, bool) { return EtherKey(l.(*layers.Dot1Q).Type), true },
	))
	d.Register(EtherKey(layers.EthernetTypeARP), FromGopacket(
		func() GopacketLayer { return &layers.ARP{} }, nil,
	))
	d.Register(EtherKey(layers.EthernetTypeIPv6), FromGopacket(
		func() GopacketLayer { return &layers.IPv6{} },
		func(l gopacket.Layer) (Key, bool) { return ProtoKey(l.(*layers.IPv6).NextHeader), true },
	))
	d.Register(ProtoKey(layers.IPProtocolTCP), FromGopacket(
		func() GopacketLayer { return &layers.TCP{} }, nil,
	))
	d.Register(ProtoKey(layers.IPProtocolUDP), FromGopacket(
		func() GopacketLayer { return &layers.UDP{} }, nil,
	))
	d.Register(ProtoKey(layers.IPProtocolICMPv4), FromGopacket(
		func() GopacketLayer { return &layers.ICMPv4{} }, nil,
	))
}
