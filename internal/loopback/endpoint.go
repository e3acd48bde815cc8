package loopback

import (
	"strconv"
	"sync"

	"github.com/danmuck/pdcpmux/internal/buffer"
	"github.com/danmuck/pdcpmux/internal/pdcp"
)

// Number of signalling radio bearers ahead of the first data bearer.
const numSRBs = 3

// RBName names a unicast logical channel: SRB0..SRB2 then DRB1 onward.
func RBName(lcid uint32) string {
	if lcid < numSRBs {
		return "SRB" + strconv.FormatUint(uint64(lcid), 10)
	}
	return "DRB" + strconv.FormatUint(uint64(lcid-numSRBs+1), 10)
}

type counts struct {
	mu sync.Mutex
	n  map[string]uint64
}

func (c *counts) consume(route string, b *buffer.Buffer) {
	c.mu.Lock()
	if c.n == nil {
		c.n = make(map[string]uint64)
	}
	c.n[route]++
	c.mu.Unlock()
	b.Release()
}

func (c *counts) snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.n))
	for k, v := range c.n {
		out[k] = v
	}
	return out
}

// ControlPlane terminates signalling and broadcast traffic by counting it.
type ControlPlane struct {
	c counts
}

var _ pdcp.ControlPlane = (*ControlPlane)(nil)

func NewControlPlane() *ControlPlane {
	return &ControlPlane{}
}

func (cp *ControlPlane) WritePDU(lcid uint32, pdu *buffer.Buffer) {
	cp.c.consume("pdu", pdu)
}

func (cp *ControlPlane) WritePDUBCCHBCH(pdu *buffer.Buffer) {
	cp.c.consume("bcch_bch", pdu)
}

func (cp *ControlPlane) WritePDUBCCHDLSCH(pdu *buffer.Buffer) {
	cp.c.consume("bcch_dlsch", pdu)
}

func (cp *ControlPlane) WritePDUPCCH(pdu *buffer.Buffer) {
	cp.c.consume("pcch", pdu)
}

func (cp *ControlPlane) WritePDUMCH(lcid uint32, pdu *buffer.Buffer) {
	cp.c.consume("mcch", pdu)
}

func (cp *ControlPlane) RBName(lcid uint32) string {
	return RBName(lcid)
}

// Counts reports deliveries per entry point.
func (cp *ControlPlane) Counts() map[string]uint64 {
	return cp.c.snapshot()
}

// Gateway terminates user-plane traffic by counting it. Downlink bytes are
// fed to the meter when one is set.
type Gateway struct {
	c     counts
	meter *Meter
}

var _ pdcp.Gateway = (*Gateway)(nil)

func NewGateway(meter *Meter) *Gateway {
	return &Gateway{meter: meter}
}

func (g *Gateway) WritePDU(lcid uint32, pdu *buffer.Buffer) {
	if g.meter != nil {
		g.meter.AddDownlink(pdu.Len())
	}
	g.c.consume("pdu", pdu)
}

func (g *Gateway) WritePDUMCH(lcid uint32, pdu *buffer.Buffer) {
	if g.meter != nil {
		g.meter.AddDownlink(pdu.Len())
	}
	g.c.consume("mtch", pdu)
}

func (g *Gateway) Counts() map[string]uint64 {
	return g.c.snapshot()
}
