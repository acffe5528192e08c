// Package savefile loads pcap savefiles: the global header, every packet
// record in file order, and optionally each record's decoded layers.
package savefile

import (
	"context"
	"io"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pcapfile/internal/cursor"
	"pcapfile/internal/decode"
)

// CaptureFile is a loaded savefile. Check Valid before using Header or
// Packets.
type CaptureFile struct {
	Header  Header
	Packets []*Packet
	Valid   bool

	err        error
	tailErr    error
	dispatcher *decode.Dispatcher
	log        *logrus.Entry
}

// Option configures Load.
type Option func(*CaptureFile)

// WithLogger sets the logger for load and decode diagnostics.
func WithLogger(log *logrus.Entry) Option {
	return func(f *CaptureFile) {
		if log != nil {
			f.log = log
		}
	}
}

// WithDispatcher replaces the default decoder set.
func WithDispatcher(d *decode.Dispatcher) Option {
	return func(f *CaptureFile) {
		if d != nil {
			f.dispatcher = d
		}
	}
}

// Load reads a savefile from r. Every complete record is kept; a record cut
// off at the end of the stream ends the load without invalidating the file.
// Only an unreadable global header makes the file invalid. When layers > 0
// each packet is decoded with that depth budget.
func Load(r io.Reader, layers int, opts ...Option) *CaptureFile {
	f := &CaptureFile{
		dispatcher: decode.Default(),
		log:        logrus.WithField("component", "savefile"),
	}
	for _, o := range opts {
		o(f)
	}

	c := cursor.New(r)
	hdr, err := ReadHeader(c)
	if err != nil {
		f.err = err
		f.log.WithError(err).Warn("Unreadable savefile header")
		return f
	}
	f.Header = hdr
	f.Valid = true

	rr := &recordReader{c: c, hdr: hdr}
	for {
		p, err := rr.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.tailErr = err
			f.log.WithError(err).WithField("packets", len(f.Packets)).Warn("Savefile ends inside a record; keeping complete records")
			break
		}
		if hdr.SnapLen > 0 && p.hdr.CapLen > hdr.SnapLen {
			f.log.WithFields(logrus.Fields{
				"record":  p.Index,
				"caplen":  p.hdr.CapLen,
				"snaplen": hdr.SnapLen,
			}).Debug("Record longer than snapshot length")
		}
		f.Packets = append(f.Packets, p)
	}

	if layers > 0 {
		for _, p := range f.Packets {
			p.Decode(f.dispatcher, layers)
		}
	}

	f.log.WithFields(logrus.Fields{
		"header":  hdr.String(),
		"packets": len(f.Packets),
		"bytes":   c.Offset(),
		"layers":  layers,
	}).Debug("Loaded savefile")
	return f
}

// Err returns why the file is invalid, or nil.
func (f *CaptureFile) Err() error {
	return f.err
}

// Truncated reports whether loading stopped inside a record rather than at
// a record boundary.
func (f *CaptureFile) Truncated() bool {
	return f.tailErr != nil
}

// TailErr returns the error that ended loading early, if any.
func (f *CaptureFile) TailErr() error {
	return f.tailErr
}

// Dispatcher returns the dispatcher used to decode this file's packets.
func (f *CaptureFile) Dispatcher() *decode.Dispatcher {
	return f.dispatcher
}

// Decode decodes every packet with the given depth budget using up to
// workers goroutines; workers <= 0 means GOMAXPROCS. Each packet is handled
// by exactly one worker, so no two goroutines touch the same cache slot.
func (f *CaptureFile) Decode(ctx context.Context, layers, workers int) error {
	if !f.Valid {
		return errors.Wrap(f.err, "decode invalid savefile")
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(f.Packets) {
		workers = len(f.Packets)
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < len(f.Packets); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				f.Packets[i].Decode(f.dispatcher, layers)
			}
			return nil
		})
	}
	return g.Wait()
}
