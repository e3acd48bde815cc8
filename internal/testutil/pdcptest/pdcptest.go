// Package pdcptest provides recording collaborators and a scriptable
// entity for multiplexer tests.
package pdcptest

import (
	"fmt"
	"sync"

	"github.com/danmuck/pdcpmux/internal/buffer"
	"github.com/danmuck/pdcpmux/internal/pdcp"
)

// Delivery is one buffer observed by a recorder.
type Delivery struct {
	Route   string
	LCID    uint32
	Payload []byte
	Buffer  *buffer.Buffer
}

// Recorder keeps every delivery it receives. Buffers are kept, not
// released, so tests can assert on ownership.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *Recorder) record(route string, lcid uint32, b *buffer.Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payload := append([]byte(nil), b.Bytes()...)
	r.deliveries = append(r.deliveries, Delivery{Route: route, LCID: lcid, Payload: payload, Buffer: b})
}

func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

func (r *Recorder) Count(route string) int {
	n := 0
	for _, d := range r.Deliveries() {
		if d.Route == route {
			n++
		}
	}
	return n
}

// Transport records uplink PDUs.
type Transport struct{ Recorder }

func (t *Transport) WriteSDU(lcid uint32, sdu *buffer.Buffer) { t.record("transport", lcid, sdu) }

// Aggregation records uplink PDUs sent on the aggregation path.
type Aggregation struct{ Recorder }

func (a *Aggregation) WriteSDU(lcid uint32, sdu *buffer.Buffer) { a.record("aggregation", lcid, sdu) }

// ControlPlane records every control-plane entry point.
type ControlPlane struct{ Recorder }

func (c *ControlPlane) WritePDU(lcid uint32, pdu *buffer.Buffer) { c.record("pdu", lcid, pdu) }
func (c *ControlPlane) WritePDUBCCHBCH(pdu *buffer.Buffer)       { c.record("bcch_bch", 0, pdu) }
func (c *ControlPlane) WritePDUBCCHDLSCH(pdu *buffer.Buffer)     { c.record("bcch_dlsch", 0, pdu) }
func (c *ControlPlane) WritePDUPCCH(pdu *buffer.Buffer)          { c.record("pcch", 0, pdu) }
func (c *ControlPlane) WritePDUMCH(lcid uint32, pdu *buffer.Buffer) {
	c.record("mch", lcid, pdu)
}
func (c *ControlPlane) RBName(lcid uint32) string { return fmt.Sprintf("RB%d", lcid) }

// Gateway records user-plane deliveries.
type Gateway struct{ Recorder }

func (g *Gateway) WritePDU(lcid uint32, pdu *buffer.Buffer)    { g.record("pdu", lcid, pdu) }
func (g *Gateway) WritePDUMCH(lcid uint32, pdu *buffer.Buffer) { g.record("mch", lcid, pdu) }

// Entity is a scriptable pdcp.Entity that records what it was asked to do.
type Entity struct {
	Active        bool
	InitCount     int
	LCID          uint32
	Config        pdcp.Config
	Security      pdcp.SecurityContext
	SecurityCalls int
	ResetCount    int
	Reestablished int
	SDUs          []*buffer.Buffer
	PDUs          []*buffer.Buffer
	Snapshot      pdcp.Metrics

	LWARatio     [2]uint32
	EMARatio     [2]uint32
	ReportPeriod uint32
	Timestamp    bool
	Autoconfig   bool
	Random       bool
}

var _ pdcp.Entity = (*Entity)(nil)

func (e *Entity) Init(_ pdcp.Collaborators, lcid uint32, cfg pdcp.Config) {
	e.Active = true
	e.InitCount++
	e.LCID = lcid
	e.Config = cfg
}

func (e *Entity) IsActive() bool { return e.Active }

func (e *Entity) Reset() {
	e.Active = false
	e.ResetCount++
	e.Config = pdcp.Config{}
	e.Security = pdcp.SecurityContext{}
}

func (e *Entity) Reestablish() { e.Reestablished++ }

func (e *Entity) ConfigSecurity(sec pdcp.SecurityConfig) {
	e.Security.SecurityConfig = sec
	e.SecurityCalls++
}

func (e *Entity) EnableIntegrity()  { e.Security.IntegrityEnabled = true }
func (e *Entity) EnableEncryption() { e.Security.EncryptionEnabled = true }

func (e *Entity) WriteSDU(sdu *buffer.Buffer) { e.SDUs = append(e.SDUs, sdu) }
func (e *Entity) WritePDU(pdu *buffer.Buffer) { e.PDUs = append(e.PDUs, pdu) }

func (e *Entity) Metrics() pdcp.Metrics { return e.Snapshot }

func (e *Entity) SetLWARatio(a, b uint32)        { e.LWARatio = [2]uint32{a, b} }
func (e *Entity) SetEMARatio(part, whole uint32) { e.EMARatio = [2]uint32{part, whole} }
func (e *Entity) SetReportPeriod(period uint32)  { e.ReportPeriod = period }
func (e *Entity) ToggleTimestamp(enabled bool)   { e.Timestamp = enabled }
func (e *Entity) ToggleAutoconfig(enabled bool)  { e.Autoconfig = enabled }
func (e *Entity) ToggleRandom(enabled bool)      { e.Random = enabled }

// Entities builds an EntityFactory and keeps every entity it produced in
// creation order: unicast slots first, then multicast.
type Entities struct {
	All []*Entity
}

func (f *Entities) Factory() pdcp.Entity {
	e := &Entity{}
	f.All = append(f.All, e)
	return e
}
