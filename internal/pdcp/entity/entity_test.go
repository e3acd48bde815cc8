package entity

import (
	"bytes"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/pdcpmux/internal/buffer"
	"github.com/danmuck/pdcpmux/internal/pdcp"
	"github.com/danmuck/pdcpmux/internal/protocol"
	"github.com/danmuck/pdcpmux/internal/testutil/pdcptest"
	"github.com/danmuck/pdcpmux/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

var (
	dataCfg    = pdcp.Config{IsData: true, Direction: pdcp.DirectionUplink}
	controlCfg = pdcp.Config{IsControl: true, Direction: pdcp.DirectionUplink}
	epoch      = time.Unix(1_700_000_000, 0)
)

type fixture struct {
	e     *Entity
	tr    *pdcptest.Transport
	ag    *pdcptest.Aggregation
	cp    *pdcptest.ControlPlane
	gw    *pdcptest.Gateway
	clock time.Time
}

func newFixture(t *testing.T, cfg pdcp.Config) *fixture {
	t.Helper()
	f := &fixture{
		tr:    &pdcptest.Transport{},
		ag:    &pdcptest.Aggregation{},
		cp:    &pdcptest.ControlPlane{},
		gw:    &pdcptest.Gateway{},
		clock: epoch,
	}
	f.e = New()
	f.e.rng = rand.New(rand.NewSource(1))
	f.e.now = func() time.Time { return f.clock }
	f.e.Init(pdcp.Collaborators{
		Transport:    f.tr,
		Aggregation:  f.ag,
		ControlPlane: f.cp,
		Gateway:      f.gw,
		Logger:       zerolog.Nop(),
	}, 3, cfg)
	return f
}

func dataPDU(t *testing.T, h protocol.Header, payload string) *buffer.Buffer {
	t.Helper()
	h.Format = protocol.FormatData
	b := buffer.Wrap([]byte(payload))
	if err := protocol.EncodeHeader(b.Prepend(h.Len()), h); err != nil {
		t.Fatalf("encode header: %v", err)
	}
	return b
}

func (f *fixture) receive(t *testing.T, sns ...uint16) {
	t.Helper()
	for _, sn := range sns {
		f.e.WritePDU(dataPDU(t, protocol.Header{SN: sn}, "x"))
	}
}

func TestWriteSDUFramesDataWithSequenceNumbers(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	for _, p := range []string{"a", "bb", "ccc"} {
		f.e.WriteSDU(buffer.Wrap([]byte(p)))
	}
	got := f.tr.Deliveries()
	if len(got) != 3 || f.ag.Count("aggregation") != 0 {
		t.Fatalf("expected 3 transport deliveries, got %d", len(got))
	}
	for i, d := range got {
		h, err := protocol.DecodeHeader(protocol.FormatData, d.Payload)
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if h.SN != uint16(i) || h.HasTimestamp {
			t.Fatalf("pdu %d: unexpected header %+v", i, h)
		}
		if d.LCID != 3 || len(d.Payload)-protocol.DataHeaderLen != i+1 {
			t.Fatalf("pdu %d: unexpected delivery %+v", i, d)
		}
	}
}

func TestWriteSDUStampsTransmitTime(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)
	f.e.ToggleTimestamp(true)

	f.e.WriteSDU(buffer.Wrap([]byte("t")))
	h, err := protocol.DecodeHeader(protocol.FormatData, f.tr.Deliveries()[0].Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !h.HasTimestamp || h.Timestamp != epoch.UnixNano() {
		t.Fatalf("unexpected timestamp header: %+v", h)
	}
}

func TestControlSequenceNumberWraps(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, controlCfg)

	for i := 0; i <= int(protocol.ControlSNModulus); i++ {
		f.e.WriteSDU(buffer.Wrap([]byte{byte(i)}))
	}
	got := f.tr.Deliveries()
	last := got[len(got)-1].Payload
	if last[0] != 0 {
		t.Fatalf("sn should wrap to 0, header byte=%#x", last[0])
	}
	if got[31].Payload[0] != 31 {
		t.Fatalf("unexpected sn before wrap: %#x", got[31].Payload[0])
	}
}

func TestDefaultBearerPassesThrough(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, pdcp.DefaultConfig(pdcp.DirectionUplink))

	f.e.WriteSDU(buffer.Wrap([]byte("raw")))
	if d := f.tr.Deliveries(); len(d) != 1 || !bytes.Equal(d[0].Payload, []byte("raw")) {
		t.Fatalf("default bearer must not frame: %+v", d)
	}
	f.e.WritePDU(buffer.Wrap([]byte("ccch")))
	if d := f.cp.Deliveries(); len(d) != 1 || !bytes.Equal(d[0].Payload, []byte("ccch")) {
		t.Fatalf("default bearer must deliver unframed to control plane: %+v", d)
	}
}

func TestLWARoundRobinSplit(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)
	f.e.SetLWARatio(2, 1)

	var order []Path
	for i := 0; i < 6; i++ {
		before := f.e.Sent(PathAggregation)
		f.e.WriteSDU(buffer.Wrap([]byte{byte(i)}))
		if f.e.Sent(PathAggregation) > before {
			order = append(order, PathAggregation)
		} else {
			order = append(order, PathTransport)
		}
	}
	want := []Path{PathTransport, PathTransport, PathAggregation, PathTransport, PathTransport, PathAggregation}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected path order: %v", order)
		}
	}
	if f.ag.Count("aggregation") != 2 || f.tr.Count("transport") != 4 {
		t.Fatalf("unexpected split: transport=%d aggregation=%d", f.tr.Count("transport"), f.ag.Count("aggregation"))
	}
}

func TestLWAZeroRatioFallsBackToTransport(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)
	f.e.SetLWARatio(0, 0)

	for i := 0; i < 4; i++ {
		f.e.WriteSDU(buffer.Wrap([]byte{byte(i)}))
	}
	if f.tr.Count("transport") != 4 || f.ag.Count("aggregation") != 0 {
		t.Fatalf("0:0 should keep all traffic on the transport")
	}
	if s := f.e.Settings(); s.LWARatioA != 1 || s.LWARatioB != 0 {
		t.Fatalf("unexpected ratio: %+v", s)
	}
}

func TestLWARandomUsesBothPaths(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)
	f.e.SetLWARatio(1, 1)
	f.e.ToggleRandom(true)

	const n = 200
	for i := 0; i < n; i++ {
		f.e.WriteSDU(buffer.Wrap([]byte{byte(i)}))
	}
	tr, ag := f.e.Sent(PathTransport), f.e.Sent(PathAggregation)
	if tr == 0 || ag == 0 || tr+ag != n {
		t.Fatalf("unexpected random split transport=%d aggregation=%d", tr, ag)
	}
}

func TestLWAMaximalRatioStillRoutes(t *testing.T) {
	testlog.Start(t)
	for _, random := range []bool{false, true} {
		f := newFixture(t, dataCfg)
		f.e.SetLWARatio(math.MaxUint32, 1)
		f.e.ToggleRandom(random)

		for i := 0; i < 4; i++ {
			f.e.WriteSDU(buffer.Wrap([]byte{byte(i)}))
		}
		if got := f.e.Sent(PathTransport) + f.e.Sent(PathAggregation); got != 4 {
			t.Fatalf("random=%v: expected 4 routed pdus, got %d", random, got)
		}
		if f.e.Sent(PathTransport) != 4 {
			t.Fatalf("random=%v: transport share should dominate, got %d", random, f.e.Sent(PathTransport))
		}
	}
}

func TestControlBearerNeverUsesAggregation(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, controlCfg)
	f.e.SetLWARatio(1, 5)

	for i := 0; i < 6; i++ {
		f.e.WriteSDU(buffer.Wrap([]byte{byte(i)}))
	}
	if f.ag.Count("aggregation") != 0 {
		t.Fatalf("control traffic must stay on the transport")
	}
}

func TestWritePDUStripsHeaderAndDelivers(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	f.e.WritePDU(dataPDU(t, protocol.Header{SN: 9}, "payload"))
	d := f.gw.Deliveries()
	if len(d) != 1 || d[0].LCID != 3 || !bytes.Equal(d[0].Payload, []byte("payload")) {
		t.Fatalf("unexpected gateway delivery: %+v", d)
	}
}

func TestControlPDUDeliversToControlPlane(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, controlCfg)

	b := buffer.Wrap([]byte("rrc"))
	if err := protocol.EncodeHeader(b.Prepend(protocol.ControlHeaderLen), protocol.Header{Format: protocol.FormatControl, SN: 4}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.e.WritePDU(b)
	if d := f.cp.Deliveries(); len(d) != 1 || !bytes.Equal(d[0].Payload, []byte("rrc")) {
		t.Fatalf("unexpected control delivery: %+v", d)
	}
	if f.gw.Count("pdu") != 0 {
		t.Fatalf("control pdu reached the gateway")
	}
}

func TestMalformedPDUIsReleased(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	bad := buffer.Wrap([]byte{0x00, 0x01, 0x02})
	f.e.WritePDU(bad)
	if !bad.Released() || f.gw.Count("pdu") != 0 {
		t.Fatalf("control-flagged pdu on a data bearer must be dropped")
	}
	short := buffer.Wrap([]byte{0x80})
	f.e.WritePDU(short)
	if !short.Released() {
		t.Fatalf("truncated pdu must be released")
	}
}

func TestDuplicateIsDroppedAndCounted(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	f.receive(t, 5)
	dup := dataPDU(t, protocol.Header{SN: 5}, "again")
	f.e.WritePDU(dup)
	if !dup.Released() {
		t.Fatalf("duplicate must be released")
	}
	if f.gw.Count("pdu") != 1 || f.e.Metrics().DuplicateCount != 1 {
		t.Fatalf("unexpected state: delivered=%d metrics=%+v", f.gw.Count("pdu"), f.e.Metrics())
	}
}

func TestReorderingAndOutOfOrder(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	f.receive(t, 0, 2, 1, 1)
	m := f.e.Metrics()
	if m.ReorderingCount != 1 || m.OutOfOrderCount != 1 || m.DuplicateCount != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if f.gw.Count("pdu") != 3 {
		t.Fatalf("expected 3 deliveries, got %d", f.gw.Count("pdu"))
	}
}

func TestExpiredArrivalIsDropped(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	f.receive(t, 0, 2000)
	late := dataPDU(t, protocol.Header{SN: 500}, "late")
	f.e.WritePDU(late)
	if !late.Released() {
		t.Fatalf("expired pdu must be released")
	}
	if m := f.e.Metrics(); m.ExpiredCount != 1 || m.OutOfOrderCount != 0 {
		t.Fatalf("unexpected metrics: %+v", m)
	}

	within := dataPDU(t, protocol.Header{SN: 2000 - ExpiryWindow}, "ok")
	f.e.WritePDU(within)
	if within.Released() || f.e.Metrics().OutOfOrderCount != 1 {
		t.Fatalf("arrival at the window edge should be accepted")
	}
}

func TestSequenceWrapIsNotExpired(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	f.receive(t, protocol.DataSNModulus-2, protocol.DataSNModulus-1, 0, 1)
	if m := f.e.Metrics(); m != (pdcp.Metrics{}) {
		t.Fatalf("in-order wrap should not count anything: %+v", m)
	}
	if f.gw.Count("pdu") != 4 {
		t.Fatalf("expected 4 deliveries")
	}
}

func TestDelayEstimateAndDelayedCount(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	stamped := func(sn uint16, transit time.Duration) {
		ts := f.clock.Add(-transit).UnixNano()
		f.e.WritePDU(dataPDU(t, protocol.Header{SN: sn, HasTimestamp: true, Timestamp: ts}, "d"))
	}
	stamped(0, 10*time.Millisecond)
	stamped(1, 10*time.Millisecond)
	if got := f.e.DelayEstimate(); got != 10*time.Millisecond {
		t.Fatalf("unexpected estimate: %v", got)
	}
	stamped(2, 30*time.Millisecond)
	if f.e.Metrics().DelayedCount != 1 {
		t.Fatalf("sample above twice the average should count as delayed")
	}
	if got := f.e.DelayEstimate(); got != 12500*time.Microsecond {
		t.Fatalf("unexpected estimate after spike: %v", got)
	}
	if d := f.gw.Deliveries(); !bytes.Equal(d[0].Payload, []byte("d")) {
		t.Fatalf("timestamp must be stripped: %q", d[0].Payload)
	}
}

func TestSetEMARatioRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	f.e.SetEMARatio(3, 2)
	f.e.SetEMARatio(1, 0)
	if s := f.e.Settings(); s.EMAPart != 1 || s.EMAWhole != 8 {
		t.Fatalf("invalid ratios must be ignored: %+v", s)
	}
	f.e.SetEMARatio(1, 2)
	if s := f.e.Settings(); s.EMAPart != 1 || s.EMAWhole != 2 {
		t.Fatalf("valid ratio not applied: %+v", s)
	}
}

func TestReportPeriodAndAutoconfig(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)
	f.e.SetLWARatio(4, 2)
	f.e.SetReportPeriod(2)
	f.e.ToggleAutoconfig(true)

	f.receive(t, 0, 1)
	if f.e.Metrics().ReportCount != 1 || f.e.Settings().LWARatioB != 3 {
		t.Fatalf("clean period should grow B: %+v %+v", f.e.Metrics(), f.e.Settings())
	}
	f.receive(t, 3, 2)
	if f.e.Metrics().ReportCount != 2 || f.e.Settings().LWARatioB != 1 {
		t.Fatalf("late arrival should halve B: %+v %+v", f.e.Metrics(), f.e.Settings())
	}
	f.receive(t, 4, 5)
	if f.e.Settings().LWARatioB != 2 {
		t.Fatalf("B should grow again after a clean period: %+v", f.e.Settings())
	}
	f.receive(t, 6, 7, 8, 9, 10, 11)
	if s := f.e.Settings(); s.LWARatioB != 4 {
		t.Fatalf("B must stop growing at A: %+v", s)
	}
}

func TestReportsDisabledByDefault(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)

	f.receive(t, 0, 1, 2, 3)
	if f.e.Metrics().ReportCount != 0 {
		t.Fatalf("reports should be off with a zero period")
	}
}

func TestInactiveEntityReleases(t *testing.T) {
	testlog.Start(t)
	e := New()

	sdu := buffer.Wrap([]byte("s"))
	pdu := buffer.Wrap([]byte("p"))
	e.WriteSDU(sdu)
	e.WritePDU(pdu)
	if !sdu.Released() || !pdu.Released() {
		t.Fatalf("inactive entity must release what it is given")
	}
}

func TestReestablishKeepsSecurityAndRestartsNumbering(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)
	sec := pdcp.SecurityConfig{EncKey: pdcp.Key{1}, Cipher: pdcp.CipherEEA2}
	f.e.ConfigSecurity(sec)
	f.e.EnableEncryption()
	f.receive(t, 0, 2)

	f.e.WriteSDU(buffer.Wrap([]byte("a")))
	f.e.WriteSDU(buffer.Wrap([]byte("b")))
	f.e.Reestablish()
	f.e.WriteSDU(buffer.Wrap([]byte("c")))

	d := f.tr.Deliveries()
	h, _ := protocol.DecodeHeader(protocol.FormatData, d[2].Payload)
	if h.SN != 0 {
		t.Fatalf("sn should restart after reestablish, got %d", h.SN)
	}
	if got := f.e.Security(); got.SecurityConfig != sec || !got.EncryptionEnabled {
		t.Fatalf("security must survive reestablish: %+v", got)
	}
	if f.e.Metrics().ReorderingCount != 1 {
		t.Fatalf("counters survive reestablish")
	}
	f.receive(t, 0)
	if f.e.Metrics().DuplicateCount != 0 {
		t.Fatalf("receive window should restart after reestablish")
	}
}

func TestResetClearsEverything(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, dataCfg)
	f.e.ConfigSecurity(pdcp.SecurityConfig{Cipher: pdcp.CipherEEA1})
	f.e.EnableIntegrity()
	f.e.SetReportPeriod(10)
	f.receive(t, 0, 0)

	f.e.Reset()
	if f.e.IsActive() {
		t.Fatalf("reset entity must be inactive")
	}
	if f.e.Security() != (pdcp.SecurityContext{}) || f.e.Metrics() != (pdcp.Metrics{}) {
		t.Fatalf("reset must clear security and metrics")
	}
	if f.e.Settings() != defaultSettings() {
		t.Fatalf("reset must restore default settings: %+v", f.e.Settings())
	}
	if f.e.Config() != (pdcp.Config{}) {
		t.Fatalf("reset must clear config")
	}
}

func TestTransmitReceiveRoundTrip(t *testing.T) {
	testlog.Start(t)
	tx := newFixture(t, dataCfg)
	rx := newFixture(t, dataCfg)
	tx.e.ToggleTimestamp(true)

	for _, p := range []string{"one", "two", "three"} {
		tx.e.WriteSDU(buffer.Wrap([]byte(p)))
	}
	for _, d := range tx.tr.Deliveries() {
		rx.e.WritePDU(d.Buffer)
	}
	got := rx.gw.Deliveries()
	if len(got) != 3 || string(got[2].Payload) != "three" {
		t.Fatalf("unexpected round trip: %+v", got)
	}
	if rx.e.Metrics() != (pdcp.Metrics{}) {
		t.Fatalf("in-order stream should not count anomalies: %+v", rx.e.Metrics())
	}
}
