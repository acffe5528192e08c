package models

import "encoding/json"

// Message types exchanged over the websocket.
const (
	TypePacket       = "packet"
	TypeCaptureStart = "capture_loading"
	TypeCaptureDone  = "capture_loaded"
	TypeFlows        = "flows"
	TypeSummary      = "summary"
	TypeError        = "error"

	CmdGetSummary = "get_summary"
	CmdGetFlows   = "get_flows"
)

// WSMessage is the envelope for all WebSocket communication.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CaptureSummary describes the most recently loaded savefile.
type CaptureSummary struct {
	Name        string `json:"name,omitempty"`
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
	Major       uint16 `json:"major"`
	Minor       uint16 `json:"minor"`
	SnapLen     uint32 `json:"snapLen"`
	LinkType    uint32 `json:"linkType"`
	Nanosecond  bool   `json:"nanosecond"`
	PacketCount int    `json:"packetCount"`
	Truncated   bool   `json:"truncated"`
	Layers      int    `json:"layers"`
}

// ErrorPayload describes an error sent to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}
