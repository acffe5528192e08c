package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcapfile/internal/savefile"
)

func load(t *testing.T, layers int) *savefile.CaptureFile {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "savefile", "testdata", "sample.pcap"))
	require.NoError(t, err)
	defer f.Close()
	cf := savefile.Load(f, layers)
	require.True(t, cf.Valid)
	return cf
}

func layerNames(p *savefile.Packet) string {
	var out []string
	for _, l := range Parse(p, time.Time{}).Layers {
		out = append(out, l.Name)
	}
	return strings.Join(out, ",")
}

func TestParseDepth(t *testing.T) {
	assert.Equal(t, "", layerNames(load(t, 0).Packets[2]))
	assert.Equal(t, "Ethernet II", layerNames(load(t, 1).Packets[2]))
	assert.Equal(t, "Ethernet II,IPv4", layerNames(load(t, 2).Packets[2]))
	assert.Equal(t, "Ethernet II,IPv4,TCP", layerNames(load(t, 3).Packets[2]))
	assert.Equal(t, "Ethernet II,IPv4,TCP,HTTP", layerNames(load(t, 3).Packets[5]))
	assert.Equal(t, "Ethernet II,IPv4,ICMPv4", layerNames(load(t, 3).Packets[9]))
}

func TestParseSummary(t *testing.T) {
	cf := load(t, 3)
	start := cf.Packets[0].Time()

	syn := Parse(cf.Packets[2], start)
	assert.Equal(t, 3, syn.Number)
	assert.Equal(t, "TCP", syn.Protocol)
	assert.Equal(t, "192.168.1.20:51000", syn.SrcAddr)
	assert.Equal(t, "93.184.216.34:80", syn.DstAddr)
	assert.True(t, strings.HasPrefix(syn.Info, "51000 -> 80 [SYN] Seq=1000"), syn.Info)
	assert.Equal(t, "0.274222", syn.Timestamp)
	assert.Equal(t, 60, syn.Length)
	assert.Equal(t, 60, syn.CaptureLength)
	assert.Equal(t, int64(1700000000274), syn.TimestampMs)

	ip := syn.Layers[1]
	v, ok := ip.Field("TTL")
	assert.True(t, ok)
	assert.Equal(t, "64", v)
	v, _ = ip.Field("Header Length")
	assert.Equal(t, "20 bytes", v)
	_, ok = ip.Field("Nope")
	assert.False(t, ok)

	echo := Parse(cf.Packets[9], start)
	assert.Equal(t, "ICMP", echo.Protocol)
	assert.Equal(t, "192.168.1.1", echo.DstAddr)

	frameOnly := Parse(load(t, 1).Packets[0], time.Time{})
	assert.Equal(t, "Ethernet", frameOnly.Protocol)
	assert.Equal(t, "3c:22:fb:1a:2b:3c", frameOnly.SrcAddr)
	assert.Equal(t, "Ethertype IPv4", frameOnly.Info)

	raw := Parse(load(t, 0).Packets[0], time.Time{})
	assert.Equal(t, "Unknown", raw.Protocol)
	assert.Equal(t, "0011", raw.RawHex[:4])
	assert.Len(t, raw.RawHex, 2*71)
}

func TestExtractFlowTuple(t *testing.T) {
	cf := load(t, 3)

	dnsQuery := ExtractFlowTuple(cf.Packets[0].Layer())
	assert.True(t, dnsQuery.Valid)
	assert.Equal(t, "UDP", dnsQuery.Protocol)
	assert.Equal(t, uint16(53001), dnsQuery.SrcPort)
	assert.Equal(t, uint16(53), dnsQuery.DstPort)

	synAck := ExtractFlowTuple(cf.Packets[3].Layer())
	assert.Equal(t, "TCP", synAck.Protocol)
	assert.True(t, synAck.Flags.SYN)
	assert.True(t, synAck.Flags.ACK)

	assert.False(t, ExtractFlowTuple(load(t, 1).Packets[0].Layer()).Valid)
	assert.False(t, ExtractFlowTuple(nil).Valid)
}

func TestFormatHexDump(t *testing.T) {
	dump := formatHexDump([]byte("GET / HTTP/1.1\r\nHost"))
	lines := strings.Split(strings.TrimSuffix(dump, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "0000  47 45 54 20 2f 20 48 54  54 50 2f 31 2e 31 0d 0a  |GET / HTTP/1.1..|", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0010  48 6f 73 74 "))
	assert.True(t, strings.HasSuffix(lines[1], "|Host|"))
}
