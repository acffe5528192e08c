// Package decode turns raw captured bytes into a chain of protocol layers.
//
// A decoded chain is a linked sequence of Layer values, outermost first.
// Each Layer keeps the bytes it did not interpret as its payload, so a chain
// that stops early (depth budget spent, unknown type, short data) still
// exposes everything below the last decoded header.
package decode

import (
	"fmt"

	"github.com/google/gopacket/layers"
)

// Space separates the numbering schemes a dispatch key can come from.
type Space uint8

const (
	SpaceLinkType Space = iota + 1
	SpaceEtherType
	SpaceIPProtocol
)

func (s Space) String() string {
	switch s {
	case SpaceLinkType:
		return "linktype"
	case SpaceEtherType:
		return "ethertype"
	case SpaceIPProtocol:
		return "ipproto"
	default:
		return fmt.Sprintf("space(%d)", uint8(s))
	}
}

// Key selects a decoder: a numeric type identifier within its Space.
type Key struct {
	Space Space
	ID    uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Space, k.ID)
}

// LinkKey is the key for a savefile link-layer type.
func LinkKey(t layers.LinkType) Key {
	return Key{Space: SpaceLinkType, ID: uint32(t)}
}

// EtherKey is the key for an ethertype.
func EtherKey(t layers.EthernetType) Key {
	return Key{Space: SpaceEtherType, ID: uint32(t)}
}

// ProtoKey is the key for an IP next-protocol number.
func ProtoKey(p layers.IPProtocol) Key {
	return Key{Space: SpaceIPProtocol, ID: uint32(p)}
}

// Layer is one decoded protocol header. The set of implementations is closed:
// *Ethernet, *IPv4 and *Foreign.
type Layer interface {
	// LayerName is a short protocol name such as "Ethernet".
	LayerName() string
	// LayerPayload returns the bytes following this layer's header.
	LayerPayload() []byte
	// Nested returns the decoded payload, or nil if decoding stopped here.
	Nested() Layer

	nextKey() (Key, bool)
	attach(Layer)
}

// Chain flattens l and everything nested below it, outermost first.
func Chain(l Layer) []Layer {
	var out []Layer
	for ; l != nil; l = l.Nested() {
		out = append(out, l)
	}
	return out
}

// Depth reports how many layers were decoded.
func Depth(l Layer) int {
	return len(Chain(l))
}
