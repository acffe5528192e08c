package parser

import (
	"github.com/google/gopacket/layers"

	"pcapfile/internal/decode"
	"pcapfile/internal/flow"
)

// FlowTuple holds the extracted 5-tuple + TCP flags from a decoded packet.
type FlowTuple struct {
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
	Protocol string
	Flags    flow.TCPFlags
	Valid    bool
}

// ExtractFlowTuple extracts the flow 5-tuple and TCP flags from a decoded
// layer chain. The tuple is valid once a network layer was decoded.
func ExtractFlowTuple(top decode.Layer) FlowTuple {
	var t FlowTuple

	for _, layer := range decode.Chain(top) {
		switch l := layer.(type) {
		case *decode.IPv4:
			t.SrcIP = l.Src.String()
			t.DstIP = l.Dst.String()
			t.Protocol = l.Protocol.String()
			t.Valid = true
		case *decode.Foreign:
			switch g := l.Decoded.(type) {
			case *layers.IPv6:
				t.SrcIP = g.SrcIP.String()
				t.DstIP = g.DstIP.String()
				t.Protocol = g.NextHeader.String()
				t.Valid = true
			case *layers.TCP:
				t.SrcPort = uint16(g.SrcPort)
				t.DstPort = uint16(g.DstPort)
				t.Protocol = "TCP"
				t.Flags = flow.TCPFlags{
					SYN: g.SYN,
					ACK: g.ACK,
					FIN: g.FIN,
					RST: g.RST,
					PSH: g.PSH,
				}
			case *layers.UDP:
				t.SrcPort = uint16(g.SrcPort)
				t.DstPort = uint16(g.DstPort)
				t.Protocol = "UDP"
			}
		}
	}

	return t
}
