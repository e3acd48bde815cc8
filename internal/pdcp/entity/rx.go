package entity

import (
	"time"

	"github.com/danmuck/pdcpmux/internal/buffer"
	"github.com/danmuck/pdcpmux/internal/protocol"
)

type rxVerdict int

const (
	rxDeliver rxVerdict = iota
	rxDuplicate
	rxExpired
)

// WritePDU strips the header, updates receive accounting and delivers the
// payload upward. Duplicates, expired and malformed PDUs are released.
func (e *Entity) WritePDU(pdu *buffer.Buffer) {
	if !e.active {
		pdu.Release()
		e.log.Warn().Msg("entity.Entity.WritePDU inactive, dropping pdu")
		return
	}

	format, framed := e.format()
	if !framed {
		e.deliver(pdu)
		return
	}

	h, err := protocol.DecodeHeader(format, pdu.Bytes())
	if err != nil {
		pdu.Release()
		e.log.Warn().Err(err).Msg("entity.Entity.WritePDU malformed pdu")
		return
	}
	pdu.TrimFront(h.Len())

	if format == protocol.FormatData {
		switch e.observe(h.SN) {
		case rxDuplicate:
			pdu.Release()
			e.log.Debug().Uint16("sn", h.SN).Msg("entity.Entity.WritePDU duplicate")
			return
		case rxExpired:
			pdu.Release()
			e.log.Debug().Uint16("sn", h.SN).Msg("entity.Entity.WritePDU expired")
			return
		}
		if h.HasTimestamp {
			e.observeDelay(time.Duration(e.now().UnixNano() - h.Timestamp))
		}
		e.countReport()
	}
	e.deliver(pdu)
}

func (e *Entity) deliver(pdu *buffer.Buffer) {
	if e.cfg.IsData {
		if e.collab.Gateway == nil {
			pdu.Release()
			e.log.Error().Msg("entity.Entity.deliver no gateway wired")
			return
		}
		e.collab.Gateway.WritePDU(e.lcid, pdu)
		return
	}
	if e.collab.ControlPlane == nil {
		pdu.Release()
		e.log.Error().Msg("entity.Entity.deliver no control plane wired")
		return
	}
	e.collab.ControlPlane.WritePDU(e.lcid, pdu)
}

// observe classifies sn against the receive window and records it.
func (e *Entity) observe(sn uint16) rxVerdict {
	const mod = protocol.DataSNModulus
	rx := &e.rx
	if !rx.started {
		rx.started = true
		rx.highest = sn
		rx.mark(sn)
		return rxDeliver
	}

	ahead := (sn - rx.highest) % mod
	switch {
	case ahead == 0:
		e.metrics.DuplicateCount++
		return rxDuplicate
	case ahead < mod/2:
		// Slots skipped over still hold marks from the previous lap.
		for i := uint16(1); i < ahead; i++ {
			rx.clear((rx.highest + i) % mod)
		}
		if ahead > 1 {
			e.metrics.ReorderingCount++
		}
		rx.highest = sn
		rx.mark(sn)
		return rxDeliver
	}

	behind := mod - ahead
	if behind > ExpiryWindow {
		e.metrics.ExpiredCount++
		return rxExpired
	}
	if rx.marked(sn) {
		e.metrics.DuplicateCount++
		return rxDuplicate
	}
	rx.mark(sn)
	rx.lateSinceReport++
	e.metrics.OutOfOrderCount++
	return rxDeliver
}

// observeDelay folds one transit sample into the moving average. A sample
// above twice the average counts as delayed.
func (e *Entity) observeDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	sample := float64(d)
	rx := &e.rx
	if rx.delayEMA > 0 && sample > delayedFactor*rx.delayEMA {
		e.metrics.DelayedCount++
	}
	if rx.delayEMA == 0 {
		rx.delayEMA = sample
		return
	}
	alpha := float64(e.settings.EMAPart) / float64(e.settings.EMAWhole)
	rx.delayEMA = alpha*sample + (1-alpha)*rx.delayEMA
}

// DelayEstimate is the current smoothed transit delay.
func (e *Entity) DelayEstimate() time.Duration {
	return time.Duration(e.rx.delayEMA)
}

func (e *Entity) countReport() {
	e.rx.received++
	period := e.settings.ReportPeriod
	if period == 0 || e.rx.received%period != 0 {
		return
	}
	e.metrics.ReportCount++
	e.log.Debug().
		Int("reordering", e.metrics.ReorderingCount).
		Int("delayed", e.metrics.DelayedCount).
		Int("expired", e.metrics.ExpiredCount).
		Int("duplicate", e.metrics.DuplicateCount).
		Int("out_of_order", e.metrics.OutOfOrderCount).
		Msg("entity.Entity report")
	if e.settings.Autoconfig {
		e.autoconfigure()
	}
	e.rx.lateSinceReport = 0
}

func (s *rxState) mark(sn uint16) {
	s.seen[sn/64] |= 1 << (sn % 64)
}

func (s *rxState) clear(sn uint16) {
	s.seen[sn/64] &^= 1 << (sn % 64)
}

func (s *rxState) marked(sn uint16) bool {
	return s.seen[sn/64]&(1<<(sn%64)) != 0
}
