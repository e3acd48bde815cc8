package entity

import (
	"github.com/danmuck/pdcpmux/internal/buffer"
	"github.com/danmuck/pdcpmux/internal/protocol"
)

// WriteSDU frames sdu and hands it to the lower layer. Ownership moves
// with it; on any failure the entity releases sdu.
func (e *Entity) WriteSDU(sdu *buffer.Buffer) {
	if !e.active {
		sdu.Release()
		e.log.Warn().Msg("entity.Entity.WriteSDU inactive, dropping sdu")
		return
	}

	format, framed := e.format()
	if framed {
		h := protocol.Header{
			Format: format,
			SN:     e.txSN,
		}
		if format == protocol.FormatData && e.settings.Timestamp {
			h.HasTimestamp = true
			h.Timestamp = e.now().UnixNano()
		}
		if err := protocol.EncodeHeader(sdu.Prepend(h.Len()), h); err != nil {
			sdu.Release()
			e.log.Error().Err(err).Msg("entity.Entity.WriteSDU header encode failed")
			return
		}
		e.txSN = (e.txSN + 1) % format.SNModulus()
	}

	path := PathTransport
	if format == protocol.FormatData {
		path = e.pickPath()
	}
	e.send(path, sdu)
}

func (e *Entity) send(path Path, pdu *buffer.Buffer) {
	switch path {
	case PathAggregation:
		e.collab.Aggregation.WriteSDU(e.lcid, pdu)
	default:
		if e.collab.Transport == nil {
			pdu.Release()
			e.log.Error().Msg("entity.Entity.send no transport wired")
			return
		}
		e.collab.Transport.WriteSDU(e.lcid, pdu)
	}
	e.sent[path]++
}

// pickPath splits uplink between transport and aggregation by the LWA
// ratio A:B. Round-robin places A on the transport, then B on aggregation;
// random mode draws with the same weights.
func (e *Entity) pickPath() Path {
	a, b := uint64(e.settings.LWARatioA), uint64(e.settings.LWARatioB)
	if b == 0 || e.collab.Aggregation == nil {
		return PathTransport
	}
	total := a + b
	if e.settings.Random {
		if uint64(e.rng.Int63n(int64(total))) < a {
			return PathTransport
		}
		return PathAggregation
	}
	pos := e.lwaPos % total
	e.lwaPos++
	if pos < a {
		return PathTransport
	}
	return PathAggregation
}
