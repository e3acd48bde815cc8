package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/pdcpmux/internal/pdcp"
)

// Target is the part of the multiplexer a profile drives.
type Target interface {
	pdcp.Tuning
	AddBearer(lcid uint32, cfg pdcp.Config)
	AddBearerMRB(lcid uint32, cfg pdcp.Config)
	ConfigSecurityAll(encKey, intKey pdcp.Key, cipher pdcp.CipheringAlgorithm, integ pdcp.IntegrityAlgorithm)
	EnableEncryption(lcid uint32)
	EnableIntegrity(lcid uint32)
}

func ParseDirection(raw string) (pdcp.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "uplink", "ul":
		return pdcp.DirectionUplink, nil
	case "downlink", "dl":
		return pdcp.DirectionDownlink, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", raw)
	}
}

func ParseCipher(raw string) (pdcp.CipheringAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "eea0":
		return pdcp.CipherEEA0, nil
	case "eea1":
		return pdcp.CipherEEA1, nil
	case "eea2":
		return pdcp.CipherEEA2, nil
	case "eea3":
		return pdcp.CipherEEA3, nil
	default:
		return 0, fmt.Errorf("unknown ciphering algorithm %q", raw)
	}
}

func ParseIntegrity(raw string) (pdcp.IntegrityAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "eia0":
		return pdcp.IntegrityEIA0, nil
	case "eia1":
		return pdcp.IntegrityEIA1, nil
	case "eia2":
		return pdcp.IntegrityEIA2, nil
	case "eia3":
		return pdcp.IntegrityEIA3, nil
	default:
		return 0, fmt.Errorf("unknown integrity algorithm %q", raw)
	}
}

// PDCPConfig converts one bearer entry. The entry must have passed
// ValidateProfile.
func (b BearerConfig) PDCPConfig() (pdcp.Config, error) {
	kind, err := bearerKind(b.Kind)
	if err != nil {
		return pdcp.Config{}, err
	}
	dir, err := ParseDirection(b.Direction)
	if err != nil {
		return pdcp.Config{}, err
	}
	return pdcp.Config{
		IsControl: kind == KindControl,
		IsData:    kind == KindData,
		Direction: dir,
	}, nil
}

// Options sizes the multiplexer from the profile.
func (p Profile) Options(factory pdcp.EntityFactory) pdcp.Options {
	return pdcp.Options{
		NumBearers:        p.Multiplexer.NumBearers,
		NumMCHLCIDs:       p.Multiplexer.NumMCHLCIDs,
		PrimaryDataBearer: p.Multiplexer.Primary(),
		NewEntity:         factory,
	}
}

// Apply adds bearers, provisions security and sets tuning in that order.
func Apply(t Target, p Profile) error {
	for _, b := range p.Bearers {
		cfg, err := b.PDCPConfig()
		if err != nil {
			return fmt.Errorf("bearer %d: %w", b.LCID, err)
		}
		t.AddBearer(b.LCID, cfg)
	}
	for _, b := range p.MRBs {
		cfg, err := b.PDCPConfig()
		if err != nil {
			return fmt.Errorf("mrb %d: %w", b.LCID, err)
		}
		t.AddBearerMRB(b.LCID, cfg)
	}

	if s := p.Security; s != nil {
		enc, err := ParseKey(s.EncKey)
		if err != nil {
			return fmt.Errorf("security.enc_key: %w", err)
		}
		integ, err := ParseKey(s.IntKey)
		if err != nil {
			return fmt.Errorf("security.int_key: %w", err)
		}
		cipher, err := ParseCipher(s.Cipher)
		if err != nil {
			return err
		}
		ia, err := ParseIntegrity(s.Integrity)
		if err != nil {
			return err
		}
		t.ConfigSecurityAll(enc, integ, cipher, ia)
		for _, lcid := range s.EnableIntegrity {
			t.EnableIntegrity(lcid)
		}
		for _, lcid := range s.EnableEncryption {
			t.EnableEncryption(lcid)
		}
	}

	if tu := p.Tuning; tu != nil {
		ApplyTuning(t, *tu)
	}
	return nil
}

// ApplyTuning sets only the knobs present in tu.
func ApplyTuning(t pdcp.Tuning, tu TuningConfig) {
	if len(tu.LWARatio) == 2 {
		t.SetLWARatio(tu.LWARatio[0], tu.LWARatio[1])
	}
	if len(tu.EMARatio) == 2 {
		t.SetEMARatio(tu.EMARatio[0], tu.EMARatio[1])
	}
	if tu.ReportPeriod != nil {
		t.SetReportPeriod(*tu.ReportPeriod)
	}
	if tu.Timestamp != nil {
		t.ToggleTimestamp(*tu.Timestamp)
	}
	if tu.Autoconfig != nil {
		t.ToggleAutoconfig(*tu.Autoconfig)
	}
	if tu.Random != nil {
		t.ToggleRandom(*tu.Random)
	}
}
