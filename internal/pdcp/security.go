package pdcp

import "github.com/danmuck/pdcpmux/internal/observability"

// ConfigSecurity provisions keys and algorithms on one active unicast
// bearer. Invalid ids are logged and ignored.
func (m *Multiplexer) ConfigSecurity(lcid uint32, encKey, intKey Key, cipher CipheringAlgorithm, integ IntegrityAlgorithm) {
	sec := SecurityConfig{EncKey: encKey, IntKey: intKey, Cipher: cipher, Integrity: integ}
	err := m.bearers.withActive(lcid, func(e Entity) {
		e.ConfigSecurity(sec)
	})
	if err != nil {
		m.logInvalid(m.bearers, lcid, "pdcp.Multiplexer.ConfigSecurity", err)
		observability.RecordBearerEvent(string(tableUnicast), "security_rejected")
		return
	}
	observability.RecordBearerEvent(string(tableUnicast), "security_configured")
	m.logger().Info().
		Uint32("lcid", lcid).
		Stringer("cipher", cipher).
		Stringer("integrity", integ).
		Msg("pdcp.Multiplexer.ConfigSecurity")
}

// ConfigSecurityAll provisions the same material on every active unicast
// bearer in one sweep. Multicast bearers are never touched.
func (m *Multiplexer) ConfigSecurityAll(encKey, intKey Key, cipher CipheringAlgorithm, integ IntegrityAlgorithm) {
	sec := SecurityConfig{EncKey: encKey, IntKey: intKey, Cipher: cipher, Integrity: integ}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	n := m.bearers.eachActive(func(_ uint32, e Entity) {
		e.ConfigSecurity(sec)
	})
	observability.RecordBearerEvent(string(tableUnicast), "security_configured_all")
	m.logger().Info().
		Int("bearers", n).
		Stringer("cipher", cipher).
		Stringer("integrity", integ).
		Msg("pdcp.Multiplexer.ConfigSecurityAll")
}

// EnableIntegrity turns on integrity protection for one active bearer.
// Key provisioning and enabling are separate steps.
func (m *Multiplexer) EnableIntegrity(lcid uint32) {
	err := m.bearers.withActive(lcid, func(e Entity) {
		e.EnableIntegrity()
	})
	if err != nil {
		m.logInvalid(m.bearers, lcid, "pdcp.Multiplexer.EnableIntegrity", err)
		return
	}
	m.logger().Info().Uint32("lcid", lcid).Msg("pdcp.Multiplexer.EnableIntegrity")
}

// EnableEncryption turns on ciphering for one active bearer.
func (m *Multiplexer) EnableEncryption(lcid uint32) {
	err := m.bearers.withActive(lcid, func(e Entity) {
		e.EnableEncryption()
	})
	if err != nil {
		m.logInvalid(m.bearers, lcid, "pdcp.Multiplexer.EnableEncryption", err)
		return
	}
	m.logger().Info().Uint32("lcid", lcid).Msg("pdcp.Multiplexer.EnableEncryption")
}
