package decode

import (
	"bytes"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x0b, 0x82, 0x01, 0xfc, 0x42}
	dstMAC = net.HardwareAddr{0x00, 0x08, 0x74, 0xad, 0xf1, 0x9b}
	srcIP  = net.IP{192, 168, 0, 1}
	dstIP  = net.IP{192, 168, 0, 10}
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

const tcpBody = "hello, capture world"

func tcpFrame(t *testing.T) []byte {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TOS:      0x10,
		TTL:      64,
		Id:       0x1234,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	tcp := &layers.TCP{SrcPort: 51000, DstPort: 80, Seq: 7, SYN: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, eth, ip, tcp, gopacket.Payload(tcpBody))
}

func TestDecodeDepthBudget(t *testing.T) {
	d := Default()
	raw := tcpFrame(t)
	link := LinkKey(layers.LinkTypeEthernet)

	assert.Nil(t, d.Decode(raw, link, 0))
	assert.Nil(t, d.Decode(raw, link, -1))

	l := d.Decode(raw, link, 1)
	eth, ok := l.(*Ethernet)
	require.True(t, ok, "got %T", l)
	assert.Equal(t, dstMAC, eth.Dst)
	assert.Equal(t, srcMAC, eth.Src)
	assert.Equal(t, layers.EthernetTypeIPv4, eth.Type)
	assert.Equal(t, raw[EthernetHeaderLen:], eth.Payload)
	assert.Nil(t, eth.Nested())
	assert.Equal(t, 1, Depth(l))

	l = d.Decode(raw, link, 2)
	ip, ok := l.Nested().(*IPv4)
	require.True(t, ok, "got %T", l.Nested())
	assert.Equal(t, uint8(4), ip.Version)
	assert.Equal(t, uint8(5), ip.IHL)
	assert.Equal(t, 20, ip.HeaderLen())
	assert.Equal(t, uint8(0x10), ip.TOS)
	assert.Equal(t, uint8(64), ip.TTL)
	assert.Equal(t, uint16(0x1234), ip.ID)
	assert.Equal(t, layers.IPv4DontFragment, ip.Flags)
	assert.Equal(t, layers.IPProtocolTCP, ip.Protocol)
	assert.Equal(t, uint16(IPv4MinHeaderLen+20+len(tcpBody)), ip.Length)
	assert.True(t, srcIP.Equal(ip.Src))
	assert.True(t, dstIP.Equal(ip.Dst))
	assert.Empty(t, ip.Options)
	assert.Nil(t, ip.Nested())
	assert.Equal(t, 2, Depth(l))

	l = d.Decode(raw, link, 5)
	chain := Chain(l)
	require.Len(t, chain, 3)
	tcpLayer, ok := chain[2].(*Foreign)
	require.True(t, ok)
	assert.Equal(t, "TCP", tcpLayer.LayerName())
	tcp := tcpLayer.Decoded.(*layers.TCP)
	assert.Equal(t, layers.TCPPort(51000), tcp.SrcPort)
	assert.Equal(t, layers.TCPPort(80), tcp.DstPort)
	assert.True(t, tcp.SYN)
	assert.Equal(t, []byte(tcpBody), tcpLayer.LayerPayload())
}

func TestDecodeUnknownTypes(t *testing.T) {
	d := Default()
	raw := tcpFrame(t)

	assert.Nil(t, d.Decode(raw, LinkKey(layers.LinkTypeIEEE802_11), 3))

	// IP protocol 1 shares its number with the Ethernet link type.
	ethOnly := New()
	ethOnly.Register(LinkKey(layers.LinkTypeEthernet), DecodeEthernet)
	assert.Nil(t, ethOnly.Decode(raw, ProtoKey(layers.IPProtocol(layers.LinkTypeEthernet)), 3))

	unknown := append([]byte(nil), raw...)
	unknown[12], unknown[13] = 0x88, 0xb5
	l := d.Decode(unknown, LinkKey(layers.LinkTypeEthernet), 3)
	eth, ok := l.(*Ethernet)
	require.True(t, ok)
	assert.Equal(t, layers.EthernetType(0x88b5), eth.Type)
	assert.Nil(t, eth.Nested())
	assert.Equal(t, unknown[EthernetHeaderLen:], eth.LayerPayload())
}

func TestDecodeTruncated(t *testing.T) {
	d := Default()
	raw := tcpFrame(t)
	link := LinkKey(layers.LinkTypeEthernet)

	assert.Nil(t, d.Decode(raw[:EthernetHeaderLen-1], link, 2))

	_, err := DecodeEthernet(raw[:4])
	assert.True(t, errors.Is(err, ErrTruncated))

	short := raw[:EthernetHeaderLen+IPv4MinHeaderLen-1]
	l := d.Decode(short, link, 2)
	require.NotNil(t, l)
	assert.Nil(t, l.Nested())
	assert.Len(t, l.LayerPayload(), IPv4MinHeaderLen-1)

	_, err = DecodeIPv4(short[EthernetHeaderLen:])
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestDecodeIPv4HeaderLength(t *testing.T) {
	raw := tcpFrame(t)
	ipBytes := append([]byte(nil), raw[EthernetHeaderLen:]...)

	bad := append([]byte(nil), ipBytes...)
	bad[0] = 0x44
	_, err := DecodeIPv4(bad)
	assert.True(t, errors.Is(err, ErrMalformed))

	long := append([]byte(nil), ipBytes[:IPv4MinHeaderLen]...)
	long[0] = 0x4f
	_, err = DecodeIPv4(long)
	assert.True(t, errors.Is(err, ErrTruncated))

	opts := append([]byte(nil), ipBytes[:IPv4MinHeaderLen]...)
	opts[0] = 0x46
	opts = append(opts, 0x01, 0x01, 0x01, 0x00, 0xde, 0xad)
	l, err := DecodeIPv4(opts)
	require.NoError(t, err)
	ip := l.(*IPv4)
	assert.Equal(t, 24, ip.HeaderLen())
	assert.Equal(t, []byte{0x01, 0x01, 0x01, 0x00}, ip.Options)
	assert.Equal(t, []byte{0xde, 0xad}, ip.Payload)
}

func TestDecodeFragmentStopsChain(t *testing.T) {
	raw := tcpFrame(t)
	frag := append([]byte(nil), raw...)
	// fragment offset 8 (64 bytes), flags cleared
	frag[EthernetHeaderLen+6], frag[EthernetHeaderLen+7] = 0x00, 0x08

	l := Default().Decode(frag, LinkKey(layers.LinkTypeEthernet), 4)
	ip := l.Nested().(*IPv4)
	assert.Equal(t, uint16(8), ip.FragOffset)
	assert.Nil(t, ip.Nested())
}

func TestDecodeIdempotent(t *testing.T) {
	d := Default()
	raw := tcpFrame(t)
	orig := bytes.Clone(raw)

	first := d.Decode(raw, LinkKey(layers.LinkTypeEthernet), 2)
	second := d.Decode(raw, LinkKey(layers.LinkTypeEthernet), 2)
	assert.Equal(t, first, second)
	assert.Equal(t, orig, raw)
}

func TestDecodeVLAN(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeDot1Q}
	vlan := &layers.Dot1Q{VLANIdentifier: 42, Type: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 9, Protocol: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: dstIP}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	raw := serialize(t, eth, vlan, ip, udp, gopacket.Payload("q"))

	chain := Chain(Default().Decode(raw, LinkKey(layers.LinkTypeEthernet), 4))
	require.Len(t, chain, 4)
	assert.Equal(t, "Dot1Q", chain[1].LayerName())
	assert.Equal(t, uint16(42), chain[1].(*Foreign).Decoded.(*layers.Dot1Q).VLANIdentifier)
	assert.Equal(t, uint8(9), chain[2].(*IPv4).TTL)
	assert.Equal(t, layers.UDPPort(53), chain[3].(*Foreign).Decoded.(*layers.UDP).DstPort)
}

func TestRegisterCustomDecoder(t *testing.T) {
	d := Default()
	key := ProtoKey(layers.IPProtocol(253))
	_, ok := d.Lookup(key)
	require.False(t, ok)

	var seen []byte
	d.Register(key, func(data []byte) (Layer, error) {
		seen = data
		return nil, errors.Wrap(ErrMalformed, "experimental")
	})
	_, ok = d.Lookup(key)
	require.True(t, ok)

	raw := tcpFrame(t)
	raw[EthernetHeaderLen+9] = 253
	l := d.Decode(raw, LinkKey(layers.LinkTypeEthernet), 3)
	assert.Equal(t, []byte("\xc7\x38\x00\x50"), seen[:4], "decoder receives the IPv4 payload")
	assert.Equal(t, 2, Depth(l))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "linktype/1", LinkKey(layers.LinkTypeEthernet).String())
	assert.Equal(t, "ethertype/2048", EtherKey(layers.EthernetTypeIPv4).String())
	assert.Equal(t, "ipproto/6", ProtoKey(layers.IPProtocolTCP).String())
}
