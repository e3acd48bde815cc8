package entity

// SetLWARatio sets the transport:aggregation split. 0:0 falls back to
// transport only.
func (e *Entity) SetLWARatio(loadRatioA, loadRatioB uint32) {
	if loadRatioA == 0 && loadRatioB == 0 {
		loadRatioA = 1
	}
	e.settings.LWARatioA = loadRatioA
	e.settings.LWARatioB = loadRatioB
	e.lwaPos = 0
	e.log.Info().Uint32("a", loadRatioA).Uint32("b", loadRatioB).Msg("entity.Entity.SetLWARatio")
}

// SetEMARatio sets the delay smoothing factor part/whole. Values outside
// (0, 1] are ignored.
func (e *Entity) SetEMARatio(part, whole uint32) {
	if whole == 0 || part == 0 || part > whole {
		e.log.Warn().Uint32("part", part).Uint32("whole", whole).Msg("entity.Entity.SetEMARatio ignored")
		return
	}
	e.settings.EMAPart = part
	e.settings.EMAWhole = whole
}

// SetReportPeriod counts a report every period received data PDUs. Zero
// disables reports.
func (e *Entity) SetReportPeriod(period uint32) {
	e.settings.ReportPeriod = period
}

func (e *Entity) ToggleTimestamp(enabled bool) {
	e.settings.Timestamp = enabled
}

func (e *Entity) ToggleAutoconfig(enabled bool) {
	e.settings.Autoconfig = enabled
}

func (e *Entity) ToggleRandom(enabled bool) {
	e.settings.Random = enabled
}

// autoconfigure runs once per report: late arrivals in the period halve
// the aggregation share, a clean period grows it by one up to the
// transport share.
func (e *Entity) autoconfigure() {
	a, b := e.settings.LWARatioA, e.settings.LWARatioB
	switch {
	case e.rx.lateSinceReport > 0:
		b /= 2
	case b < a:
		b++
	default:
		return
	}
	if b == e.settings.LWARatioB {
		return
	}
	e.settings.LWARatioB = b
	e.lwaPos = 0
	e.log.Info().
		Uint32("a", a).
		Uint32("b", b).
		Int("late", e.rx.lateSinceReport).
		Msg("entity.Entity.autoconfigure ratio")
}
