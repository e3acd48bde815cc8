// Package loopback provides in-process collaborators for running the
// multiplexer without a radio stack.
//
// Links stand in for the transport and aggregation paths: every uplink PDU
// is queued and later fed back into a Sink, normally the multiplexer's
// receive side. Endpoints stand in for the control plane and the gateway:
// they count what they are given and release it.
package loopback

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/danmuck/pdcpmux/internal/buffer"
	"github.com/danmuck/pdcpmux/internal/observability"
	"github.com/rs/zerolog"
)

const DefaultQueueDepth = 256

var (
	ErrLinkStarted = errors.New("loopback link already started")
	ErrLinkClosed  = errors.New("loopback link closed")
)

// Sink receives looped PDUs.
type Sink interface {
	WritePDU(lcid uint32, pdu *buffer.Buffer)
}

type frame struct {
	lcid uint32
	pdu  *buffer.Buffer
}

// Link is a bounded queue drained by one goroutine into a Sink. WriteSDU
// never blocks: it is called by entities while their slot is locked, and
// the drain goroutine takes that same lock on the way back in.
type Link struct {
	name  string
	log   zerolog.Logger
	meter *Meter

	mu      sync.RWMutex
	queue   chan frame
	started bool
	closed  bool
	wg      sync.WaitGroup

	looped  atomic.Uint64
	dropped atomic.Uint64
}

// NewLink creates a stopped link. meter may be nil.
func NewLink(name string, depth int, meter *Meter, logger zerolog.Logger) *Link {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Link{
		name:  name,
		log:   logger.With().Str("link", name).Logger(),
		meter: meter,
		queue: make(chan frame, depth),
	}
}

func (l *Link) Name() string {
	return l.name
}

// Start begins draining into sink.
func (l *Link) Start(sink Sink) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	if l.started {
		return ErrLinkStarted
	}
	l.started = true
	l.wg.Add(1)
	go l.drain(sink)
	l.log.Debug().Int("depth", cap(l.queue)).Msg("loopback.Link.Start")
	return nil
}

// WriteSDU queues sdu for loop back. A full or closed link releases it.
func (l *Link) WriteSDU(lcid uint32, sdu *buffer.Buffer) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.reject(lcid, sdu, "closed")
		return
	}
	n := sdu.Len()
	select {
	case l.queue <- frame{lcid: lcid, pdu: sdu}:
		if l.meter != nil {
			l.meter.AddUplink(n)
		}
	default:
		l.reject(lcid, sdu, "queue_full")
	}
}

func (l *Link) reject(lcid uint32, sdu *buffer.Buffer, reason string) {
	sdu.Release()
	l.dropped.Add(1)
	observability.RecordDispatchDrop("loopback_"+l.name, reason)
	l.log.Warn().Uint32("lcid", lcid).Str("reason", reason).Msg("loopback.Link.WriteSDU dropped")
}

func (l *Link) drain(sink Sink) {
	defer l.wg.Done()
	for f := range l.queue {
		sink.WritePDU(f.lcid, f.pdu)
		l.looped.Add(1)
	}
}

// Close stops accepting PDUs and waits until everything queued has been
// delivered. Queued PDUs on a never-started link are released.
func (l *Link) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	started := l.started
	l.mu.Unlock()

	if !started {
		for f := range l.queue {
			f.pdu.Release()
			l.dropped.Add(1)
		}
	}
	l.wg.Wait()
	l.log.Debug().
		Uint64("looped", l.looped.Load()).
		Uint64("dropped", l.dropped.Load()).
		Msg("loopback.Link.Close")
}

// LinkStats counts PDUs handed to the sink and PDUs dropped.
type LinkStats struct {
	Looped  uint64 `json:"looped"`
	Dropped uint64 `json:"dropped"`
}

func (l *Link) Stats() LinkStats {
	return LinkStats{Looped: l.looped.Load(), Dropped: l.dropped.Load()}
}
