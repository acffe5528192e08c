package models

// PacketInfo represents a loaded savefile record with all display data.
type PacketInfo struct {
	Number        int           `json:"number"`
	Timestamp     string        `json:"timestamp"`
	TimestampMs   int64         `json:"timestampMs"`
	SrcAddr       string        `json:"srcAddr"`
	DstAddr       string        `json:"dstAddr"`
	Protocol      string        `json:"protocol"`
	Length        int           `json:"length"`
	CaptureLength int           `json:"captureLength"`
	Info          string        `json:"info"`
	Layers        []LayerDetail `json:"layers"`
	HexDump       string        `json:"hexDump"`
	RawHex        string        `json:"rawHex"`
	FlowID        uint64        `json:"flowId,omitempty"`
}

// LayerDetail represents one protocol layer in the packet.
type LayerDetail struct {
	Name   string       `json:"name"`
	Fields []LayerField `json:"fields"`
}

// LayerField represents a single field within a protocol layer.
type LayerField struct {
	Name     string       `json:"name"`
	Value    string       `json:"value"`
	Children []LayerField `json:"children,omitempty"`
}

// Field returns the value of the named field and whether it was present.
func (d LayerDetail) Field(name string) (string, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}
