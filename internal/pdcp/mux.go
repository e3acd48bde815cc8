package pdcp

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/danmuck/pdcpmux/internal/observability"
	"github.com/rs/zerolog"
)

// Options sizes the tables and names the primary data bearer.
type Options struct {
	NumBearers        int
	NumMCHLCIDs       int
	PrimaryDataBearer uint32
	NewEntity         EntityFactory
}

func DefaultOptions(factory EntityFactory) Options {
	return Options{
		NumBearers:        NumRadioBearers,
		NumMCHLCIDs:       NumMCHLCIDs,
		PrimaryDataBearer: DefaultPrimaryDataBearer,
		NewEntity:         factory,
	}
}

func (o Options) Validate() error {
	if o.NewEntity == nil {
		return fmt.Errorf("%w: entity factory is required", ErrInvalidOptions)
	}
	if o.NumBearers <= int(DefaultBearer) {
		return fmt.Errorf("%w: num_bearers=%d", ErrInvalidOptions, o.NumBearers)
	}
	if o.NumMCHLCIDs <= 0 {
		return fmt.Errorf("%w: num_mch_lcids=%d", ErrInvalidOptions, o.NumMCHLCIDs)
	}
	if uint64(o.PrimaryDataBearer) >= uint64(o.NumBearers) {
		return fmt.Errorf("%w: primary_data_bearer=%d outside [0:%d)", ErrInvalidOptions, o.PrimaryDataBearer, o.NumBearers)
	}
	return nil
}

// wiring is what Init installs. It is replaced whole, never mutated.
type wiring struct {
	collab    Collaborators
	lcid      uint32
	direction Direction
}

// Multiplexer owns the unicast and multicast bearer tables.
type Multiplexer struct {
	bearers *table
	mrbs    *table
	primary uint32
	wiring  atomic.Pointer[wiring]
	stopped atomic.Bool

	// lifecycle serializes activation and table-wide sweeps against each
	// other. Per-slot traffic does not take it.
	lifecycle sync.Mutex
}

// New builds both tables with inactive entities. Call Init before routing
// traffic.
func New(opts Options) (*Multiplexer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	bearers, err := newTable(tableUnicast, opts.NumBearers, opts.NewEntity)
	if err != nil {
		return nil, err
	}
	mrbs, err := newTable(tableMulticast, opts.NumMCHLCIDs, opts.NewEntity)
	if err != nil {
		return nil, err
	}
	observability.RegisterMetrics()
	m := &Multiplexer{
		bearers: bearers,
		mrbs:    mrbs,
		primary: opts.PrimaryDataBearer,
	}
	m.wiring.Store(&wiring{collab: Collaborators{Logger: zerolog.Nop()}})
	return m, nil
}

// Init wires the collaborators used by every later activation and brings
// up the default bearer with the pass-through configuration.
func (m *Multiplexer) Init(
	transport Transport,
	aggregation Aggregation,
	controlPlane ControlPlane,
	gateway Gateway,
	logger zerolog.Logger,
	lcid uint32,
	direction Direction,
) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.wiring.Store(&wiring{
		collab: Collaborators{
			Transport:    transport,
			Aggregation:  aggregation,
			ControlPlane: controlPlane,
			Gateway:      gateway,
			Logger:       logger,
		},
		lcid:      lcid,
		direction: direction,
	})
	m.stopped.Store(false)

	m.initDefaultBearer()
	logger.Info().
		Uint32("lcid", lcid).
		Stringer("direction", direction).
		Int("bearers", m.bearers.size()).
		Int("mch_lcids", m.mrbs.size()).
		Uint32("primary_data_bearer", m.primary).
		Msg("pdcp.Multiplexer.Init")
}

// Stop marks the multiplexer stopped. Tables are left as they are; nothing
// the caller owns is released.
func (m *Multiplexer) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		m.logger().Info().Msg("pdcp.Multiplexer.Stop")
	}
}

func (m *Multiplexer) Stopped() bool {
	return m.stopped.Load()
}

// PrimaryDataBearer is the slot the metrics and tuning surface targets.
func (m *Multiplexer) PrimaryDataBearer() uint32 {
	return m.primary
}

// AddBearer activates a unicast slot. Re-adding an active slot is a no-op
// with a warning; reconfiguration is not supported.
func (m *Multiplexer) AddBearer(lcid uint32, cfg Config) {
	m.addBearer(m.bearers, lcid, cfg)
}

// AddBearerMRB activates a multicast slot with the same contract.
func (m *Multiplexer) AddBearerMRB(lcid uint32, cfg Config) {
	m.addBearer(m.mrbs, lcid, cfg)
}

func (m *Multiplexer) addBearer(t *table, lcid uint32, cfg Config) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	err := t.activate(lcid, m.wired().collab, cfg)
	switch {
	case err == nil:
		observability.RecordBearerEvent(string(t.kind), "added")
		m.logger().Info().
			Str("table", string(t.kind)).
			Str("bearer", m.rbName(lcid)).
			Uint32("lcid", lcid).
			Str("kind", cfg.Kind()).
			Stringer("direction", cfg.Direction).
			Msg("pdcp.Multiplexer.AddBearer added")
	case errors.Is(err, ErrBearerActive):
		observability.RecordBearerEvent(string(t.kind), "reconfigure_rejected")
		m.logger().Warn().
			Str("table", string(t.kind)).
			Str("bearer", m.rbName(lcid)).
			Uint32("lcid", lcid).
			Msg("pdcp.Multiplexer.AddBearer already configured, reconfiguration not supported")
	default:
		observability.RecordBearerEvent(string(t.kind), "out_of_range")
		m.logRangeError(t, lcid, "pdcp.Multiplexer.AddBearer")
	}
}

// IsActive reports whether a unicast slot is active. Out-of-range ids
// report false with a diagnostic.
func (m *Multiplexer) IsActive(lcid uint32) bool {
	active, err := m.bearers.isActive(lcid)
	if err != nil {
		m.logRangeError(m.bearers, lcid, "pdcp.Multiplexer.IsActive")
		return false
	}
	return active
}

// IsDRBEnabled is IsActive under the name upper layers use.
func (m *Multiplexer) IsDRBEnabled(lcid uint32) bool {
	return m.IsActive(lcid)
}

// IsMRBActive reports multicast slot activation.
func (m *Multiplexer) IsMRBActive(lcid uint32) bool {
	active, err := m.mrbs.isActive(lcid)
	if err != nil {
		m.logRangeError(m.mrbs, lcid, "pdcp.Multiplexer.IsMRBActive")
		return false
	}
	return active
}

// Reset returns every unicast slot to its inactive baseline and then
// brings the default bearer back with the pass-through configuration.
func (m *Multiplexer) Reset() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.bearers.each(func(_ uint32, e Entity) {
		e.Reset()
	})
	observability.RecordBearerEvent(string(tableUnicast), "reset")

	m.initDefaultBearer()
	m.logger().Info().Msg("pdcp.Multiplexer.Reset complete")
}

// Reestablish reestablishes the unicast slots active right now. Inactive
// slots, slot 0 included, are skipped.
func (m *Multiplexer) Reestablish() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	n := m.bearers.eachActive(func(lcid uint32, e Entity) {
		e.Reestablish()
		observability.RecordBearerEvent(string(tableUnicast), "reestablished")
		m.logger().Debug().Uint32("lcid", lcid).Msg("pdcp.Multiplexer.Reestablish bearer")
	})
	m.logger().Info().Int("bearers", n).Msg("pdcp.Multiplexer.Reestablish complete")
}

// Bearers lists every slot of both tables in index order.
func (m *Multiplexer) Bearers() []BearerStatus {
	out := make([]BearerStatus, 0, m.bearers.size()+m.mrbs.size())
	m.bearers.each(func(lcid uint32, e Entity) {
		out = append(out, BearerStatus{LCID: lcid, Name: m.rbName(lcid), Active: e.IsActive()})
	})
	m.mrbs.each(func(lcid uint32, e Entity) {
		out = append(out, BearerStatus{LCID: lcid, Name: "MRB" + strconv.FormatUint(uint64(lcid), 10), Multicast: true, Active: e.IsActive()})
	})
	return out
}

// CheckLCID reports why a unicast id would be rejected, without logging.
func (m *Multiplexer) CheckLCID(lcid uint32) error {
	return check(m.bearers, lcid)
}

// CheckMCHLCID is CheckLCID for the multicast table.
func (m *Multiplexer) CheckMCHLCID(lcid uint32) error {
	return check(m.mrbs, lcid)
}

func check(t *table, lcid uint32) error {
	active, err := t.isActive(lcid)
	if err != nil {
		return err
	}
	if !active {
		return ErrBearerInactive
	}
	return nil
}

// initDefaultBearer is the explicit post-step of Init and Reset. Caller
// holds lifecycle.
func (m *Multiplexer) initDefaultBearer() {
	w := m.wired()
	cfg := DefaultConfig(w.direction)
	_ = m.bearers.with(DefaultBearer, func(e Entity) {
		e.Init(w.collab, w.lcid, cfg)
	})
	observability.RecordBearerEvent(string(tableUnicast), "default_bearer_init")
}

func (m *Multiplexer) wired() *wiring {
	return m.wiring.Load()
}

func (m *Multiplexer) logger() *zerolog.Logger {
	return &m.wired().collab.Logger
}

func (m *Multiplexer) rbName(lcid uint32) string {
	cp := m.wired().collab.ControlPlane
	if cp == nil {
		return "lcid" + strconv.FormatUint(uint64(lcid), 10)
	}
	return cp.RBName(lcid)
}

func (m *Multiplexer) logRangeError(t *table, lcid uint32, op string) {
	m.logger().Error().
		Str("table", string(t.kind)).
		Uint32("lcid", lcid).
		Int("size", t.size()).
		Msg(op + " radio bearer id out of range")
}

// logInvalid emits the diagnostic for a failed validity check. Range and
// activation failures log differently.
func (m *Multiplexer) logInvalid(t *table, lcid uint32, op string, err error) {
	if errors.Is(err, ErrLCIDOutOfRange) {
		m.logRangeError(t, lcid, op)
		return
	}
	m.logger().Error().
		Str("table", string(t.kind)).
		Uint32("lcid", lcid).
		Msg(op + " entity for logical channel has not been activated")
}

func dropReason(err error) string {
	if errors.Is(err, ErrLCIDOutOfRange) {
		return "out_of_range"
	}
	return "inactive"
}
