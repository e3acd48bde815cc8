package pdcp

import (
	"github.com/danmuck/pdcpmux/internal/buffer"
	"github.com/rs/zerolog"
)

// Every buffer passed through these interfaces moves ownership to the
// callee.

// Transport is the lower layer carrying PDUs for a logical channel.
type Transport interface {
	WriteSDU(lcid uint32, sdu *buffer.Buffer)
}

// Aggregation is the alternate lower path used when a data bearer splits
// traffic across links. The multiplexer never calls it; entities do.
type Aggregation interface {
	WriteSDU(lcid uint32, sdu *buffer.Buffer)
}

// ControlPlane terminates signalling and broadcast traffic.
type ControlPlane interface {
	WritePDU(lcid uint32, pdu *buffer.Buffer)
	WritePDUBCCHBCH(pdu *buffer.Buffer)
	WritePDUBCCHDLSCH(pdu *buffer.Buffer)
	WritePDUPCCH(pdu *buffer.Buffer)
	WritePDUMCH(lcid uint32, pdu *buffer.Buffer)
	// RBName is used for diagnostics only.
	RBName(lcid uint32) string
}

// Gateway terminates user-plane traffic.
type Gateway interface {
	WritePDU(lcid uint32, pdu *buffer.Buffer)
	WritePDUMCH(lcid uint32, pdu *buffer.Buffer)
}

// Collaborators is the set wired into every entity on Init.
type Collaborators struct {
	Transport    Transport
	Aggregation  Aggregation
	ControlPlane ControlPlane
	Gateway      Gateway
	Logger       zerolog.Logger
}

// Tuning is the runtime knob surface of a data bearer.
type Tuning interface {
	SetLWARatio(loadRatioA, loadRatioB uint32)
	SetEMARatio(part, whole uint32)
	SetReportPeriod(period uint32)
	ToggleTimestamp(enabled bool)
	ToggleAutoconfig(enabled bool)
	ToggleRandom(enabled bool)
}

// Entity is one bearer's protocol context. Methods are called with the
// owning slot locked and must not call back into the Multiplexer for the
// same slot before returning.
type Entity interface {
	Tuning

	Init(c Collaborators, lcid uint32, cfg Config)
	IsActive() bool
	// Reset drops in-flight data, sequence and security state and leaves
	// the entity inactive.
	Reset()
	// Reestablish clears sequence and reordering state in place. Keys,
	// algorithms and activation are kept.
	Reestablish()

	ConfigSecurity(sec SecurityConfig)
	EnableIntegrity()
	EnableEncryption()

	WriteSDU(sdu *buffer.Buffer)
	WritePDU(pdu *buffer.Buffer)

	Metrics() Metrics
}

// EntityFactory builds the inactive entity held by one slot.
type EntityFactory func() Entity
