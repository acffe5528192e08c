// Package parser renders savefile packets and their decoded layers into
// display models.
package parser

import (
	"fmt"
	"strings"
	"time"

	"pcapfile/internal/models"
	"pcapfile/internal/savefile"
)

// Parse converts a loaded packet into a PacketInfo. Timestamps are relative
// to startTime unless it is zero.
func Parse(p *savefile.Packet, startTime time.Time) models.PacketInfo {
	info := models.PacketInfo{
		Number:        p.Index + 1,
		TimestampMs:   p.TimestampMs(),
		Length:        int(p.PacketLen()),
		CaptureLength: int(p.CaptureLen()),
	}

	// Timestamp relative to start
	ts := p.Time()
	if startTime.IsZero() {
		info.Timestamp = ts.Format("15:04:05.000000")
	} else {
		elapsed := ts.Sub(startTime)
		info.Timestamp = fmt.Sprintf("%.6f", elapsed.Seconds())
	}

	info.Layers = extractLayers(p.Layer())
	info.Protocol, info.SrcAddr, info.DstAddr, info.Info = summarize(p.Layer())

	if data := p.Raw(); len(data) > 0 {
		info.HexDump = formatHexDump(data)
		info.RawHex = formatRawHex(data)
	}

	return info
}

func formatHexDump(data []byte) string {
	var sb strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		// Offset
		sb.WriteString(fmt.Sprintf("%04x  ", offset))

		// Hex bytes
		end := offset + 16
		if end > len(data) {
			end = len(data)
		}
		for i := offset; i < offset+16; i++ {
			if i < end {
				sb.WriteString(fmt.Sprintf("%02x ", data[i]))
			} else {
				sb.WriteString("   ")
			}
			if i == offset+7 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(" |")

		// ASCII
		for i := offset; i < end; i++ {
			b := data[i]
			if b >= 0x20 && b <= 0x7e {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('|')
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatRawHex(data []byte) string {
	return fmt.Sprintf("%x", data)
}
