package parser

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/gopacket/layers"

	"pcapfile/internal/decode"
	"pcapfile/internal/models"
)

func extractLayers(top decode.Layer) []models.LayerDetail {
	var result []models.LayerDetail
	for _, layer := range decode.Chain(top) {
		if detail, ok := parseLayer(layer); ok {
			result = append(result, detail)
		}
	}
	// Whatever the chain left undecoded may still be readable text.
	if rest := undecoded(top); isHTTP(rest) {
		result = append(result, parseHTTP(rest))
	}
	return result
}

// undecoded returns the payload of the innermost decoded layer.
func undecoded(top decode.Layer) []byte {
	chain := decode.Chain(top)
	if len(chain) == 0 {
		return nil
	}
	return chain[len(chain)-1].LayerPayload()
}

func parseLayer(layer decode.Layer) (models.LayerDetail, bool) {
	switch l := layer.(type) {
	case *decode.Ethernet:
		return parseEthernet(l), true
	case *decode.IPv4:
		return parseIPv4(l), true
	case *decode.Foreign:
		switch g := l.Decoded.(type) {
		case *layers.Dot1Q:
			return parseDot1Q(g), true
		case *layers.ARP:
			return parseARP(g), true
		case *layers.IPv6:
			return parseIPv6(g), true
		case *layers.TCP:
			return parseTCP(g), true
		case *layers.UDP:
			return parseUDP(g), true
		case *layers.ICMPv4:
			return parseICMPv4(g), true
		}
		return models.LayerDetail{Name: l.LayerName()}, true
	default:
		return models.LayerDetail{}, false
	}
}

func parseEthernet(eth *decode.Ethernet) models.LayerDetail {
	return models.LayerDetail{
		Name: "Ethernet II",
		Fields: []models.LayerField{
			{Name: "Source", Value: eth.Src.String()},
			{Name: "Destination", Value: eth.Dst.String()},
			{Name: "Type", Value: eth.Type.String()},
		},
	}
}

func parseDot1Q(q *layers.Dot1Q) models.LayerDetail {
	return models.LayerDetail{
		Name: "802.1Q",
		Fields: []models.LayerField{
			{Name: "Priority", Value: fmt.Sprintf("%d", q.Priority)},
			{Name: "VLAN", Value: fmt.Sprintf("%d", q.VLANIdentifier)},
			{Name: "Type", Value: q.Type.String()},
		},
	}
}

func parseARP(arp *layers.ARP) models.LayerDetail {
	op := "Unknown"
	switch arp.Operation {
	case layers.ARPRequest:
		op = "Request (1)"
	case layers.ARPReply:
		op = "Reply (2)"
	}
	return models.LayerDetail{
		Name: "ARP",
		Fields: []models.LayerField{
			{Name: "Operation", Value: op},
			{Name: "Sender MAC", Value: net.HardwareAddr(arp.SourceHwAddress).String()},
			{Name: "Sender IP", Value: net.IP(arp.SourceProtAddress).String()},
			{Name: "Target MAC", Value: net.HardwareAddr(arp.DstHwAddress).String()},
			{Name: "Target IP", Value: net.IP(arp.DstProtAddress).String()},
		},
	}
}

func parseIPv4(ip *decode.IPv4) models.LayerDetail {
	return models.LayerDetail{
		Name: "IPv4",
		Fields: []models.LayerField{
			{Name: "Version", Value: fmt.Sprintf("%d", ip.Version)},
			{Name: "Header Length", Value: fmt.Sprintf("%d bytes", ip.HeaderLen())},
			{Name: "Type of Service", Value: fmt.Sprintf("0x%02x", ip.TOS)},
			{Name: "Total Length", Value: fmt.Sprintf("%d", ip.Length)},
			{Name: "Identification", Value: fmt.Sprintf("0x%04x (%d)", ip.ID, ip.ID)},
			{Name: "Flags", Value: ip.Flags.String()},
			{Name: "Fragment Offset", Value: fmt.Sprintf("%d", ip.FragOffset)},
			{Name: "TTL", Value: fmt.Sprintf("%d", ip.TTL)},
			{Name: "Protocol", Value: ip.Protocol.String()},
			{Name: "Checksum", Value: fmt.Sprintf("0x%04x", ip.Checksum)},
			{Name: "Source", Value: ip.Src.String()},
			{Name: "Destination", Value: ip.Dst.String()},
		},
	}
}

func parseIPv6(ip *layers.IPv6) models.LayerDetail {
	return models.LayerDetail{
		Name: "IPv6",
		Fields: []models.LayerField{
			{Name: "Version", Value: fmt.Sprintf("%d", ip.Version)},
			{Name: "Traffic Class", Value: fmt.Sprintf("0x%02x", ip.TrafficClass)},
			{Name: "Flow Label", Value: fmt.Sprintf("0x%05x", ip.FlowLabel)},
			{Name: "Payload Length", Value: fmt.Sprintf("%d", ip.Length)},
			{Name: "Next Header", Value: ip.NextHeader.String()},
			{Name: "Hop Limit", Value: fmt.Sprintf("%d", ip.HopLimit)},
			{Name: "Source", Value: ip.SrcIP.String()},
			{Name: "Destination", Value: ip.DstIP.String()},
		},
	}
}

func tcpFlags(tcp *layers.TCP) []string {
	var flags []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{tcp.SYN, "SYN"}, {tcp.ACK, "ACK"}, {tcp.FIN, "FIN"},
		{tcp.RST, "RST"}, {tcp.PSH, "PSH"}, {tcp.URG, "URG"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	return flags
}

func parseTCP(tcp *layers.TCP) models.LayerDetail {
	return models.LayerDetail{
		Name: "TCP",
		Fields: []models.LayerField{
			{Name: "Source Port", Value: fmt.Sprintf("%d", tcp.SrcPort)},
			{Name: "Destination Port", Value: fmt.Sprintf("%d", tcp.DstPort)},
			{Name: "Sequence Number", Value: fmt.Sprintf("%d", tcp.Seq)},
			{Name: "Acknowledgment Number", Value: fmt.Sprintf("%d", tcp.Ack)},
			{Name: "Data Offset", Value: fmt.Sprintf("%d bytes", tcp.DataOffset*4)},
			{Name: "Flags", Value: fmt.Sprintf("[%s]", strings.Join(tcpFlags(tcp), ", "))},
			{Name: "Window Size", Value: fmt.Sprintf("%d", tcp.Window)},
			{Name: "Checksum", Value: fmt.Sprintf("0x%04x", tcp.Checksum)},
			{Name: "Urgent Pointer", Value: fmt.Sprintf("%d", tcp.Urgent)},
		},
	}
}

func parseUDP(udp *layers.UDP) models.LayerDetail {
	return models.LayerDetail{
		Name: "UDP",
		Fields: []models.LayerField{
			{Name: "Source Port", Value: fmt.Sprintf("%d", udp.SrcPort)},
			{Name: "Destination Port", Value: fmt.Sprintf("%d", udp.DstPort)},
			{Name: "Length", Value: fmt.Sprintf("%d", udp.Length)},
			{Name: "Checksum", Value: fmt.Sprintf("0x%04x", udp.Checksum)},
		},
	}
}

func parseICMPv4(icmp *layers.ICMPv4) models.LayerDetail {
	return models.LayerDetail{
		Name: "ICMPv4",
		Fields: []models.LayerField{
			{Name: "Type", Value: fmt.Sprintf("%d (%s)", icmp.TypeCode.Type(), icmp.TypeCode.String())},
			{Name: "Code", Value: fmt.Sprintf("%d", icmp.TypeCode.Code())},
			{Name: "Checksum", Value: fmt.Sprintf("0x%04x", icmp.Checksum)},
			{Name: "Identifier", Value: fmt.Sprintf("0x%04x", icmp.Id)},
			{Name: "Sequence", Value: fmt.Sprintf("%d", icmp.Seq)},
		},
	}
}

func isHTTP(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	s := string(data[:4])
	return s == "GET " || s == "POST" || s == "PUT " || s == "DELE" ||
		s == "HEAD" || s == "HTTP" || s == "PATC" || s == "OPTI"
}

func parseHTTP(data []byte) models.LayerDetail {
	text := string(data)
	lines := strings.SplitN(text, "\r\n", 32)

	fields := []models.LayerField{}
	if len(lines) > 0 {
		fields = append(fields, models.LayerField{Name: "Request/Status Line", Value: lines[0]})
	}
	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) == 2 {
			fields = append(fields, models.LayerField{Name: parts[0], Value: parts[1]})
		}
	}

	return models.LayerDetail{Name: "HTTP", Fields: fields}
}

// summarize determines the highest decoded protocol and builds
// address/info strings.
func summarize(top decode.Layer) (protocol, src, dst, info string) {
	protocol = "Unknown"
	var srcPort, dstPort string

	for _, layer := range decode.Chain(top) {
		switch l := layer.(type) {
		case *decode.Ethernet:
			protocol = "Ethernet"
			src, dst = l.Src.String(), l.Dst.String()
			info = fmt.Sprintf("Ethertype %s", l.Type)
		case *decode.IPv4:
			protocol = "IPv4"
			src, dst = l.Src.String(), l.Dst.String()
			info = fmt.Sprintf("%s TTL=%d Len=%d", l.Protocol, l.TTL, l.Length)
		case *decode.Foreign:
			switch g := l.Decoded.(type) {
			case *layers.ARP:
				protocol = "ARP"
				srcIP, dstIP := net.IP(g.SourceProtAddress).String(), net.IP(g.DstProtAddress).String()
				src, dst = srcIP, dstIP
				if g.Operation == layers.ARPRequest {
					info = fmt.Sprintf("Who has %s? Tell %s", dstIP, srcIP)
				} else {
					info = fmt.Sprintf("%s is at %s", srcIP, net.HardwareAddr(g.SourceHwAddress))
				}
			case *layers.IPv6:
				protocol = "IPv6"
				src, dst = g.SrcIP.String(), g.DstIP.String()
				info = fmt.Sprintf("%s HopLimit=%d", g.NextHeader, g.HopLimit)
			case *layers.TCP:
				protocol = "TCP"
				srcPort, dstPort = fmt.Sprintf("%d", g.SrcPort), fmt.Sprintf("%d", g.DstPort)
				info = fmt.Sprintf("%d -> %d [%s] Seq=%d Ack=%d Win=%d Len=%d",
					g.SrcPort, g.DstPort, strings.Join(tcpFlags(g), ","),
					g.Seq, g.Ack, g.Window, len(g.Payload))
			case *layers.UDP:
				protocol = "UDP"
				srcPort, dstPort = fmt.Sprintf("%d", g.SrcPort), fmt.Sprintf("%d", g.DstPort)
				info = fmt.Sprintf("%d -> %d Len=%d", g.SrcPort, g.DstPort, g.Length)
			case *layers.ICMPv4:
				protocol = "ICMP"
				info = g.TypeCode.String()
			}
		}
	}

	if rest := undecoded(top); protocol == "TCP" && isHTTP(rest) {
		protocol = "HTTP"
		info = strings.SplitN(string(rest), "\r\n", 2)[0]
	}
	if srcPort != "" {
		src = net.JoinHostPort(src, srcPort)
		dst = net.JoinHostPort(dst, dstPort)
	}
	return
}
