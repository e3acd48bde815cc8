package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/pdcpmux/internal/pdcp"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

// Profile is the bearer layout and tuning a pdcpctl instance applies after
// Init.
type Profile struct {
	Multiplexer MultiplexerConfig `toml:"multiplexer"`
	Bearers     []BearerConfig    `toml:"bearers"`
	MRBs        []BearerConfig    `toml:"mrbs"`
	Security    *SecurityConfig   `toml:"security"`
	Tuning      *TuningConfig     `toml:"tuning"`
}

type MultiplexerConfig struct {
	LCID              uint32 `toml:"lcid"`
	Direction         string `toml:"direction"`
	PrimaryDataBearer *uint32 `toml:"primary_data_bearer"`
	NumBearers        int    `toml:"num_bearers"`
	NumMCHLCIDs       int    `toml:"num_mch_lcids"`
}

// Primary is the configured primary data bearer, or the default when the
// key is absent.
func (m MultiplexerConfig) Primary() uint32 {
	if m.PrimaryDataBearer == nil {
		return pdcp.DefaultPrimaryDataBearer
	}
	return *m.PrimaryDataBearer
}

type BearerConfig struct {
	LCID      uint32 `toml:"lcid"`
	Kind      string `toml:"kind"`
	Direction string `toml:"direction"`
}

type SecurityConfig struct {
	EncKey           string   `toml:"enc_key"`
	IntKey           string   `toml:"int_key"`
	Cipher           string   `toml:"cipher"`
	Integrity        string   `toml:"integrity"`
	EnableEncryption []uint32 `toml:"enable_encryption"`
	EnableIntegrity  []uint32 `toml:"enable_integrity"`
}

// TuningConfig is shared by the profile file and the admin PUT /tuning
// body. Absent fields leave the knob alone.
type TuningConfig struct {
	LWARatio     []uint32 `toml:"lwa_ratio" json:"lwa_ratio,omitempty"`
	EMARatio     []uint32 `toml:"ema_ratio" json:"ema_ratio,omitempty"`
	ReportPeriod *uint32  `toml:"report_period" json:"report_period,omitempty"`
	Timestamp    *bool    `toml:"timestamp" json:"timestamp,omitempty"`
	Autoconfig   *bool    `toml:"autoconfig" json:"autoconfig,omitempty"`
	Random       *bool    `toml:"random" json:"random,omitempty"`
}

// MaxLWAShare bounds each side of tuning.lwa_ratio.
const MaxLWAShare = 1024

const (
	KindDefault = "default"
	KindControl = "control"
	KindData    = "data"
)

func LoadProfile(path string) (Profile, error) {
	var p Profile
	if err := loadToml(path, &p); err != nil {
		return Profile{}, err
	}
	p = withDefaults(p)
	if err := ValidateProfile(p); err != nil {
		return Profile{}, fmt.Errorf("profile invalid (%s): %w", path, err)
	}
	return p, nil
}

// ParseProfile is LoadProfile for an in-memory document.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("profile parse failed: %w", err)
	}
	p = withDefaults(p)
	if err := ValidateProfile(p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func withDefaults(p Profile) Profile {
	if strings.TrimSpace(p.Multiplexer.Direction) == "" {
		p.Multiplexer.Direction = "uplink"
	}
	if p.Multiplexer.PrimaryDataBearer == nil {
		primary := pdcp.DefaultPrimaryDataBearer
		p.Multiplexer.PrimaryDataBearer = &primary
	}
	if p.Multiplexer.NumBearers == 0 {
		p.Multiplexer.NumBearers = pdcp.NumRadioBearers
	}
	if p.Multiplexer.NumMCHLCIDs == 0 {
		p.Multiplexer.NumMCHLCIDs = pdcp.NumMCHLCIDs
	}
	for i := range p.Bearers {
		if strings.TrimSpace(p.Bearers[i].Direction) == "" {
			p.Bearers[i].Direction = p.Multiplexer.Direction
		}
	}
	for i := range p.MRBs {
		if strings.TrimSpace(p.MRBs[i].Direction) == "" {
			p.MRBs[i].Direction = "downlink"
		}
	}
	return p
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ValidateProfile reports every problem in p, not just the first.
func ValidateProfile(p Profile) error {
	var errs error
	mux := p.Multiplexer
	if _, err := ParseDirection(mux.Direction); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("multiplexer: %w", err))
	}
	if mux.NumBearers <= 0 || mux.NumMCHLCIDs <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("multiplexer: table sizes must be positive"))
	}
	if primary := mux.Primary(); int(primary) >= mux.NumBearers {
		errs = multierr.Append(errs, fmt.Errorf("multiplexer: primary_data_bearer %d outside %d bearers", primary, mux.NumBearers))
	}
	errs = multierr.Append(errs, validateBearers("bearers", p.Bearers, mux.NumBearers))
	errs = multierr.Append(errs, validateBearers("mrbs", p.MRBs, mux.NumMCHLCIDs))
	if p.Security != nil {
		errs = multierr.Append(errs, validateSecurity(*p.Security, mux.NumBearers))
	}
	if p.Tuning != nil {
		errs = multierr.Append(errs, ValidateTuning(*p.Tuning))
	}
	return errs
}

func validateBearers(section string, bearers []BearerConfig, size int) error {
	var errs error
	seen := make(map[uint32]bool, len(bearers))
	for i, b := range bearers {
		if int(b.LCID) >= size {
			errs = multierr.Append(errs, fmt.Errorf("%s[%d]: lcid %d outside %d slots", section, i, b.LCID, size))
		}
		if seen[b.LCID] {
			errs = multierr.Append(errs, fmt.Errorf("%s[%d]: lcid %d listed twice", section, i, b.LCID))
		}
		seen[b.LCID] = true
		if _, err := bearerKind(b.Kind); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s[%d]: %w", section, i, err))
		}
		if _, err := ParseDirection(b.Direction); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s[%d]: %w", section, i, err))
		}
	}
	return errs
}

func validateSecurity(s SecurityConfig, size int) error {
	var errs error
	if _, err := ParseKey(s.EncKey); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("security.enc_key: %w", err))
	}
	if _, err := ParseKey(s.IntKey); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("security.int_key: %w", err))
	}
	if _, err := ParseCipher(s.Cipher); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("security.cipher: %w", err))
	}
	if _, err := ParseIntegrity(s.Integrity); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("security.integrity: %w", err))
	}
	for _, lcid := range append(append([]uint32(nil), s.EnableEncryption...), s.EnableIntegrity...) {
		if int(lcid) >= size {
			errs = multierr.Append(errs, fmt.Errorf("security: enable lcid %d outside %d bearers", lcid, size))
		}
	}
	return errs
}

func ValidateTuning(t TuningConfig) error {
	var errs error
	if t.LWARatio != nil {
		if len(t.LWARatio) != 2 {
			errs = multierr.Append(errs, fmt.Errorf("tuning.lwa_ratio: want [a, b]"))
		} else if t.LWARatio[0] > MaxLWAShare || t.LWARatio[1] > MaxLWAShare {
			errs = multierr.Append(errs, fmt.Errorf("tuning.lwa_ratio: each share must be at most %d", MaxLWAShare))
		}
	}
	if t.EMARatio != nil {
		if len(t.EMARatio) != 2 {
			errs = multierr.Append(errs, fmt.Errorf("tuning.ema_ratio: want [part, whole]"))
		} else if t.EMARatio[0] == 0 || t.EMARatio[0] > t.EMARatio[1] {
			errs = multierr.Append(errs, fmt.Errorf("tuning.ema_ratio: part must be in (0, whole]"))
		}
	}
	return errs
}

// ParseKey decodes a hex key of at most 32 bytes. Empty is the zero key.
func ParseKey(raw string) ([32]byte, error) {
	var key [32]byte
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return key, nil
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return key, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) > len(key) {
		return key, fmt.Errorf("key is %d bytes, max %d", len(b), len(key))
	}
	copy(key[:], b)
	return key, nil
}

func bearerKind(raw string) (string, error) {
	switch k := strings.ToLower(strings.TrimSpace(raw)); k {
	case KindDefault, KindControl, KindData:
		return k, nil
	case "":
		return KindDefault, nil
	default:
		return "", fmt.Errorf("unknown bearer kind %q", raw)
	}
}
