package engine

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"pcapfile/internal/decode"
	"pcapfile/internal/flow"
	"pcapfile/internal/models"
	"pcapfile/internal/parser"
	"pcapfile/internal/savefile"
)

// Client represents a connected WebSocket client that receives packets.
type Client interface {
	SendMessage(msg models.WSMessage) error
}

// Config tunes how captures are decoded and replayed to clients.
type Config struct {
	// Workers decoding packets in parallel; 0 means GOMAXPROCS.
	Workers int
	// PaceBatch packets are broadcast before pausing for PaceDelay.
	// Zero disables pacing.
	PaceBatch int
	PaceDelay time.Duration
}

// DefaultConfig paces replay so browser clients can keep up.
var DefaultConfig = Config{PaceBatch: 200, PaceDelay: 5 * time.Millisecond}

// Engine loads savefiles and broadcasts their packets to clients.
type Engine struct {
	mu         sync.Mutex
	clients    map[Client]bool
	tracker    *flow.Tracker
	summary    models.CaptureSummary
	loading    bool
	cfg        Config
	dispatcher *decode.Dispatcher
	log        *logrus.Entry
}

// New creates a new Engine.
func New(cfg Config, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.WithField("component", "engine")
	}
	return &Engine{
		clients:    make(map[Client]bool),
		tracker:    flow.NewTracker(),
		cfg:        cfg,
		dispatcher: decode.Default(),
		log:        log,
	}
}

// RegisterClient adds a client to receive packet broadcasts.
func (e *Engine) RegisterClient(c Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clients[c] = true
}

// UnregisterClient removes a client.
func (e *Engine) UnregisterClient(c Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.clients, c)
}

// Summary returns the summary of the most recent load.
func (e *Engine) Summary() models.CaptureSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// Flows returns the flow table of the most recent load.
func (e *Engine) Flows() []*flow.Flow {
	return e.tracker.GetFlows()
}

// LoadCapture reads a savefile from r, decodes it with the given depth
// budget and streams every packet to all clients. An invalid savefile is
// reported to clients and returned as an error; a truncated one is not.
func (e *Engine) LoadCapture(ctx context.Context, name string, r io.Reader, layers int) (models.CaptureSummary, error) {
	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return models.CaptureSummary{}, errors.New("capture already loading")
	}
	e.loading = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	log := e.log.WithField("capture", name)
	cf := savefile.Load(r, 0, savefile.WithLogger(log), savefile.WithDispatcher(e.dispatcher))
	summary := summarize(name, cf, layers)
	e.setSummary(summary)

	if !cf.Valid {
		e.broadcastJSON(models.TypeError, models.ErrorPayload{Message: "invalid savefile: " + summary.Error})
		return summary, errors.Wrapf(cf.Err(), "load %s", name)
	}
	if err := cf.Decode(ctx, layers, e.cfg.Workers); err != nil {
		return summary, errors.Wrapf(err, "decode %s", name)
	}

	e.tracker.Reset()
	e.broadcastJSON(models.TypeCaptureStart, summary)

	var firstTS time.Time
	batch := 0
	for _, p := range cf.Packets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if firstTS.IsZero() {
			firstTS = p.Time()
		}

		info := parser.Parse(p, firstTS)
		if t := parser.ExtractFlowTuple(p.Layer()); t.Valid {
			info.FlowID, _ = e.tracker.Track(t.SrcIP, t.DstIP, t.SrcPort, t.DstPort, t.Protocol,
				int(p.PacketLen()), p.TimestampMs(), t.Flags)
		}
		e.broadcastJSON(models.TypePacket, info)

		batch++
		if e.cfg.PaceBatch > 0 && batch >= e.cfg.PaceBatch {
			batch = 0
			time.Sleep(e.cfg.PaceDelay)
		}
	}

	e.broadcastJSON(models.TypeCaptureDone, summary)
	e.broadcastJSON(models.TypeFlows, e.tracker.GetFlows())
	log.WithFields(logrus.Fields{
		"packets":   summary.PacketCount,
		"truncated": summary.Truncated,
		"flows":     len(e.tracker.GetFlows()),
	}).Info("Capture loaded")
	return summary, nil
}

func summarize(name string, cf *savefile.CaptureFile, layers int) models.CaptureSummary {
	s := models.CaptureSummary{
		Name:        name,
		Valid:       cf.Valid,
		PacketCount: len(cf.Packets),
		Truncated:   cf.Truncated(),
		Layers:      layers,
	}
	if !cf.Valid {
		s.Error = cf.Err().Error()
		return s
	}
	s.Major = cf.Header.Major
	s.Minor = cf.Header.Minor
	s.SnapLen = cf.Header.SnapLen
	s.LinkType = cf.Header.LinkType
	s.Nanosecond = cf.Header.Nanosecond()
	return s
}

func (e *Engine) setSummary(s models.CaptureSummary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summary = s
}

func (e *Engine) broadcastJSON(typ string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		e.log.WithError(err).WithField("type", typ).Error("Failed to encode message")
		return
	}
	e.broadcast(models.WSMessage{Type: typ, Payload: payload})
}

func (e *Engine) broadcast(msg models.WSMessage) {
	e.mu.Lock()
	clients := make([]Client, 0, len(e.clients))
	for c := range e.clients {
		clients = append(clients, c)
	}
	e.mu.Unlock()

	for _, c := range clients {
		if err := c.SendMessage(msg); err != nil {
			e.log.WithError(err).Debug("Dropped message for client")
		}
	}
}
