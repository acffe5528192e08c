package decode

import (
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"pcapfile/internal/cursor"
)

var (
	// ErrTruncated is returned by a decoder given fewer bytes than its header needs.
	ErrTruncated = cursor.ErrTruncated
	// ErrMalformed is returned by a decoder whose header fields are inconsistent.
	ErrMalformed = errors.New("malformed header")
)

// Decoder interprets data as a single protocol header. It must not modify
// data; returned layers may keep sub-slices of it.
type Decoder func(data []byte) (Layer, error)

// Dispatcher maps keys to decoders and drives a depth-bounded decode.
// Register everything before the first Decode; lookups are not synchronized.
type Dispatcher struct {
	decoders map[Key]Decoder
	log      *logrus.Entry
}

// New returns a Dispatcher with no decoders registered.
func New() *Dispatcher {
	return &Dispatcher{
		decoders: make(map[Key]Decoder),
		log:      logrus.WithField("component", "decode"),
	}
}

// Default returns a Dispatcher with every built-in decoder registered.
func Default() *Dispatcher {
	d := New()
	d.Register(LinkKey(layers.LinkTypeEthernet), DecodeEthernet)
	d.Register(EtherKey(layers.EthernetTypeIPv4), DecodeIPv4)
	RegisterGopacket(d)
	return d
}

// SetLogger replaces the logger used for decode diagnostics.
func (d *Dispatcher) SetLogger(log *logrus.Entry) {
	if log != nil {
		d.log = log
	}
}

// Register installs fn for k, replacing any previous decoder.
func (d *Dispatcher) Register(k Key, fn Decoder) {
	d.decoders[k] = fn
}

// Lookup returns the decoder registered for k.
func (d *Dispatcher) Lookup(k Key) (Decoder, bool) {
	fn, ok := d.decoders[k]
	return fn, ok
}

// Decode decodes raw as the protocol named by k, then keeps going into the
// payload for at most depth layers in total. It returns nil when depth is
// spent, no decoder is registered for k, or the decoder rejects raw. Those
// cases are not errors; the caller still holds raw.
func (d *Dispatcher) Decode(raw []byte, k Key, depth int) Layer {
	if depth <= 0 {
		return nil
	}
	fn, ok := d.decoders[k]
	if !ok {
		d.log.WithField("key", k).Trace("no decoder registered")
		return nil
	}
	l, err := fn(raw)
	if err != nil {
		d.log.WithFields(logrus.Fields{"key": k, "len": len(raw)}).WithError(err).Debug("decode stopped")
		return nil
	}
	if next, ok := l.nextKey(); ok {
		l.attach(d.Decode(l.LayerPayload(), next, depth-1))
	}
	return l
}
