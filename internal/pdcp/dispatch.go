package pdcp

import (
	"github.com/danmuck/pdcpmux/internal/buffer"
	"github.com/danmuck/pdcpmux/internal/observability"
)

const (
	routeSDU       = "sdu"
	routePDU       = "pdu"
	routeSDUMCH    = "sdu_mch"
	routeBCCHBCH   = "bcch_bch"
	routeBCCHDLSCH = "bcch_dlsch"
	routePCCH      = "pcch"
	routeMCCH      = "mcch"
	routeMTCH      = "mtch"
)

// WriteSDU hands an uplink SDU to the unicast bearer. On an invalid id the
// multiplexer releases the SDU itself.
func (m *Multiplexer) WriteSDU(lcid uint32, sdu *buffer.Buffer) {
	err := m.bearers.withActive(lcid, func(e Entity) {
		e.WriteSDU(sdu)
	})
	if err != nil {
		m.drop(m.bearers, routeSDU, lcid, sdu, err)
		return
	}
	observability.RecordDispatchForward(routeSDU)
}

// WritePDU hands a downlink PDU to the unicast bearer. On an invalid id
// the multiplexer releases the PDU itself.
func (m *Multiplexer) WritePDU(lcid uint32, pdu *buffer.Buffer) {
	err := m.bearers.withActive(lcid, func(e Entity) {
		e.WritePDU(pdu)
	})
	if err != nil {
		m.drop(m.bearers, routePDU, lcid, pdu, err)
		return
	}
	observability.RecordDispatchForward(routePDU)
}

// WriteSDUMCH hands an SDU to a multicast bearer. An invalid id is a
// no-op and the caller keeps ownership of sdu.
func (m *Multiplexer) WriteSDUMCH(lcid uint32, sdu *buffer.Buffer) {
	err := m.mrbs.withActive(lcid, func(e Entity) {
		e.WriteSDU(sdu)
	})
	if err != nil {
		m.logInvalid(m.mrbs, lcid, "pdcp.Multiplexer.WriteSDUMCH", err)
		observability.RecordDispatchDrop(routeSDUMCH, dropReason(err))
		return
	}
	observability.RecordDispatchForward(routeSDUMCH)
}

func (m *Multiplexer) WritePDUBCCHBCH(pdu *buffer.Buffer) {
	cp := m.wired().collab.ControlPlane
	if cp == nil {
		m.dropUnwired(routeBCCHBCH, pdu)
		return
	}
	cp.WritePDUBCCHBCH(pdu)
	observability.RecordDispatchForward(routeBCCHBCH)
}

func (m *Multiplexer) WritePDUBCCHDLSCH(pdu *buffer.Buffer) {
	cp := m.wired().collab.ControlPlane
	if cp == nil {
		m.dropUnwired(routeBCCHDLSCH, pdu)
		return
	}
	cp.WritePDUBCCHDLSCH(pdu)
	observability.RecordDispatchForward(routeBCCHDLSCH)
}

func (m *Multiplexer) WritePDUPCCH(pdu *buffer.Buffer) {
	cp := m.wired().collab.ControlPlane
	if cp == nil {
		m.dropUnwired(routePCCH, pdu)
		return
	}
	cp.WritePDUPCCH(pdu)
	observability.RecordDispatchForward(routePCCH)
}

// WritePDUMCH bypasses the multicast table: the control channel goes to
// the control plane, every other id to the gateway.
func (m *Multiplexer) WritePDUMCH(lcid uint32, pdu *buffer.Buffer) {
	c := m.wired().collab
	if lcid == MCCHLCID {
		if c.ControlPlane == nil {
			m.dropUnwired(routeMCCH, pdu)
			return
		}
		c.ControlPlane.WritePDUMCH(lcid, pdu)
		observability.RecordDispatchForward(routeMCCH)
		return
	}
	if c.Gateway == nil {
		m.dropUnwired(routeMTCH, pdu)
		return
	}
	c.Gateway.WritePDUMCH(lcid, pdu)
	observability.RecordDispatchForward(routeMTCH)
}

// drop logs, counts and releases a unit that could not be routed.
func (m *Multiplexer) drop(t *table, route string, lcid uint32, b *buffer.Buffer, err error) {
	m.logInvalid(t, lcid, "pdcp.Multiplexer.Write"+routeLabel(route), err)
	released := b != nil && b.Release()
	m.logger().Warn().
		Str("route", route).
		Uint32("lcid", lcid).
		Bool("released", released).
		Msg("pdcp.Multiplexer dropping unroutable data unit")
	observability.RecordDispatchDrop(route, dropReason(err))
}

// dropUnwired covers bypass traffic arriving before Init.
func (m *Multiplexer) dropUnwired(route string, b *buffer.Buffer) {
	if b != nil {
		b.Release()
	}
	m.logger().Error().Str("route", route).Msg("pdcp.Multiplexer no collaborator wired, call Init first")
	observability.RecordDispatchDrop(route, "not_initialized")
}

func routeLabel(route string) string {
	switch route {
	case routeSDU:
		return "SDU"
	case routePDU:
		return "PDU"
	default:
		return route
	}
}
