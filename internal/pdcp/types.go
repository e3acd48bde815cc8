package pdcp

import "fmt"

const (
	// NumRadioBearers is the default unicast table size.
	NumRadioBearers = 5
	// NumMCHLCIDs is the default multicast table size.
	NumMCHLCIDs = 32
	// DefaultPrimaryDataBearer is the slot metrics and tuning go to.
	DefaultPrimaryDataBearer uint32 = 3

	// DefaultBearer is the signalling slot reinitialized after every reset.
	DefaultBearer uint32 = 0
	// MCCHLCID carries multicast control on the MCH.
	MCCHLCID uint32 = 0
)

type Direction uint8

const (
	DirectionUplink Direction = iota
	DirectionDownlink
)

func (d Direction) String() string {
	switch d {
	case DirectionUplink:
		return "uplink"
	case DirectionDownlink:
		return "downlink"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Config selects the bearer kind. Neither flag set is the pass-through
// configuration used by the default bearer.
type Config struct {
	IsControl bool
	IsData    bool
	Direction Direction
}

// DefaultConfig is the pass-through configuration for slot 0.
func DefaultConfig(direction Direction) Config {
	return Config{IsControl: false, IsData: false, Direction: direction}
}

func (c Config) Kind() string {
	switch {
	case c.IsData:
		return "data"
	case c.IsControl:
		return "control"
	default:
		return "default"
	}
}

type CipheringAlgorithm uint8

const (
	CipherEEA0 CipheringAlgorithm = iota
	CipherEEA1
	CipherEEA2
	CipherEEA3
)

func (a CipheringAlgorithm) String() string {
	switch a {
	case CipherEEA0:
		return "EEA0"
	case CipherEEA1:
		return "128-EEA1"
	case CipherEEA2:
		return "128-EEA2"
	case CipherEEA3:
		return "128-EEA3"
	default:
		return fmt.Sprintf("eea(%d)", uint8(a))
	}
}

type IntegrityAlgorithm uint8

const (
	IntegrityEIA0 IntegrityAlgorithm = iota
	IntegrityEIA1
	IntegrityEIA2
	IntegrityEIA3
)

func (a IntegrityAlgorithm) String() string {
	switch a {
	case IntegrityEIA0:
		return "EIA0"
	case IntegrityEIA1:
		return "128-EIA1"
	case IntegrityEIA2:
		return "128-EIA2"
	case IntegrityEIA3:
		return "128-EIA3"
	default:
		return fmt.Sprintf("eia(%d)", uint8(a))
	}
}

// Key is fixed-size key material. It is passed by value so every bearer
// holds its own copy.
type Key [32]byte

// SecurityConfig is one key/algorithm provisioning step.
type SecurityConfig struct {
	EncKey    Key
	IntKey    Key
	Cipher    CipheringAlgorithm
	Integrity IntegrityAlgorithm
}

// SecurityContext is the security state an entity keeps. The multiplexer
// only forwards configuration into it.
type SecurityContext struct {
	SecurityConfig
	EncryptionEnabled bool
	IntegrityEnabled  bool
}

// Metrics is the per-bearer counter snapshot.
type Metrics struct {
	ReorderingCount int `json:"reordering_cnt"`
	DelayedCount    int `json:"delayed_cnt"`
	ExpiredCount    int `json:"expired_cnt"`
	DuplicateCount  int `json:"duplicate_cnt"`
	OutOfOrderCount int `json:"outoforder_cnt"`
	ReportCount     int `json:"report_cnt"`
}

// AggregationMetrics is the throughput view of the aggregation path.
type AggregationMetrics struct {
	DLThroughputBitrate float64 `json:"dl_tput_brate"`
	ULThroughputBitrate float64 `json:"ul_tput_brate"`
	DLThroughputBits    int     `json:"dl_tput_bits"`
	ULThroughputBits    int     `json:"ul_tput_bits"`
}

// BearerStatus is a read-only view of one slot.
type BearerStatus struct {
	LCID      uint32 `json:"lcid"`
	Name      string `json:"name"`
	Multicast bool   `json:"multicast"`
	Active    bool   `json:"active"`
}
