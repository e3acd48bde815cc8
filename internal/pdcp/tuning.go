package pdcp

// The metrics and tuning surface targets the primary data bearer without
// checking its activation; an inactive entity decides what that means.

func (m *Multiplexer) Metrics() Metrics {
	var out Metrics
	m.onPrimary(func(e Entity) {
		out = e.Metrics()
	})
	return out
}

func (m *Multiplexer) SetLWARatio(loadRatioA, loadRatioB uint32) {
	m.onPrimary(func(e Entity) {
		e.SetLWARatio(loadRatioA, loadRatioB)
	})
}

func (m *Multiplexer) SetEMARatio(part, whole uint32) {
	m.onPrimary(func(e Entity) {
		e.SetEMARatio(part, whole)
	})
}

func (m *Multiplexer) SetReportPeriod(period uint32) {
	m.onPrimary(func(e Entity) {
		e.SetReportPeriod(period)
	})
}

func (m *Multiplexer) ToggleTimestamp(enabled bool) {
	m.onPrimary(func(e Entity) {
		e.ToggleTimestamp(enabled)
	})
}

func (m *Multiplexer) ToggleAutoconfig(enabled bool) {
	m.onPrimary(func(e Entity) {
		e.ToggleAutoconfig(enabled)
	})
}

func (m *Multiplexer) ToggleRandom(enabled bool) {
	m.onPrimary(func(e Entity) {
		e.ToggleRandom(enabled)
	})
}

func (m *Multiplexer) onPrimary(fn func(Entity)) {
	// primary is range-checked in New.
	_ = m.bearers.with(m.primary, fn)
}
