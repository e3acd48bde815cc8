// Package entity is the reference per-bearer protocol context.
//
// It frames SDUs with sequence numbers, splits data-bearer uplink between
// the transport and the aggregation path, and keeps the receive-side
// counters exposed as pdcp.Metrics. It performs no ciphering, integrity
// protection or header compression: security configuration is stored and
// reported only.
package entity

import (
	"math/rand"
	"time"

	"github.com/danmuck/pdcpmux/internal/pdcp"
	"github.com/danmuck/pdcpmux/internal/protocol"
	"github.com/rs/zerolog"
)

const (
	// ExpiryWindow is how far behind the highest received SN a PDU may
	// arrive before it is discarded as expired.
	ExpiryWindow = 1024

	defaultReportPeriod uint32 = 0
	delayedFactor              = 2.0
)

// Path is where an uplink PDU left the entity.
type Path string

const (
	PathTransport   Path = "transport"
	PathAggregation Path = "aggregation"
)

// Settings is a snapshot of the tuning knobs.
type Settings struct {
	LWARatioA    uint32 `json:"lwa_ratio_a"`
	LWARatioB    uint32 `json:"lwa_ratio_b"`
	EMAPart      uint32 `json:"ema_part"`
	EMAWhole     uint32 `json:"ema_whole"`
	ReportPeriod uint32 `json:"report_period"`
	Timestamp    bool   `json:"timestamp"`
	Autoconfig   bool   `json:"autoconfig"`
	Random       bool   `json:"random"`
}

func defaultSettings() Settings {
	return Settings{
		LWARatioA:    1,
		LWARatioB:    0,
		EMAPart:      1,
		EMAWhole:     8,
		ReportPeriod: defaultReportPeriod,
	}
}

// Entity implements pdcp.Entity. It is not safe for concurrent use; the
// multiplexer serializes calls through the owning slot.
type Entity struct {
	active bool
	collab pdcp.Collaborators
	lcid   uint32
	cfg    pdcp.Config
	log    zerolog.Logger
	sec    pdcp.SecurityContext

	settings Settings
	metrics  pdcp.Metrics

	txSN   uint16
	lwaPos uint64
	sent   map[Path]uint64

	rx rxState

	rng *rand.Rand
	now func() time.Time
}

type rxState struct {
	started  bool
	highest  uint16
	seen     [protocol.DataSNModulus / 64]uint64
	received uint32
	delayEMA float64
	// lateSinceReport feeds autoconfig.
	lateSinceReport int
}

// New returns an inactive entity.
func New() *Entity {
	return &Entity{
		log:      zerolog.Nop(),
		settings: defaultSettings(),
		sent:     make(map[Path]uint64),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// Factory adapts New to pdcp.EntityFactory.
func Factory() pdcp.Entity {
	return New()
}

var _ pdcp.Entity = (*Entity)(nil)

func (e *Entity) Init(c pdcp.Collaborators, lcid uint32, cfg pdcp.Config) {
	e.collab = c
	e.lcid = lcid
	e.cfg = cfg
	e.log = c.Logger.With().Uint32("lcid", lcid).Str("kind", cfg.Kind()).Logger()
	e.sec = pdcp.SecurityContext{}
	e.metrics = pdcp.Metrics{}
	e.txSN = 0
	e.lwaPos = 0
	e.sent = make(map[Path]uint64)
	e.rx = rxState{}
	e.active = true
	e.log.Debug().Stringer("direction", cfg.Direction).Msg("entity.Entity.Init")
}

func (e *Entity) IsActive() bool {
	return e.active
}

func (e *Entity) Reset() {
	if e.active {
		e.log.Debug().Msg("entity.Entity.Reset")
	}
	e.active = false
	e.cfg = pdcp.Config{}
	e.sec = pdcp.SecurityContext{}
	e.metrics = pdcp.Metrics{}
	e.settings = defaultSettings()
	e.txSN = 0
	e.lwaPos = 0
	e.sent = make(map[Path]uint64)
	e.rx = rxState{}
}

func (e *Entity) Reestablish() {
	e.txSN = 0
	e.lwaPos = 0
	e.rx = rxState{}
	e.log.Debug().
		Stringer("cipher", e.sec.Cipher).
		Stringer("integrity", e.sec.Integrity).
		Msg("entity.Entity.Reestablish")
}

func (e *Entity) ConfigSecurity(sec pdcp.SecurityConfig) {
	e.sec.SecurityConfig = sec
}

func (e *Entity) EnableIntegrity() {
	e.sec.IntegrityEnabled = true
}

func (e *Entity) EnableEncryption() {
	e.sec.EncryptionEnabled = true
}

// Security returns the stored security context.
func (e *Entity) Security() pdcp.SecurityContext {
	return e.sec
}

// Config returns the configuration the entity was initialized with.
func (e *Entity) Config() pdcp.Config {
	return e.cfg
}

func (e *Entity) Settings() Settings {
	return e.settings
}

func (e *Entity) Metrics() pdcp.Metrics {
	return e.metrics
}

// Sent reports how many uplink PDUs left on a path.
func (e *Entity) Sent(p Path) uint64 {
	return e.sent[p]
}

func (e *Entity) format() (protocol.Format, bool) {
	switch {
	case e.cfg.IsData:
		return protocol.FormatData, true
	case e.cfg.IsControl:
		return protocol.FormatControl, true
	default:
		return 0, false
	}
}
