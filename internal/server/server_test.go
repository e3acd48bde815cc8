package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/pdcpmux/internal/auth"
	"github.com/danmuck/pdcpmux/internal/pdcp"
	"github.com/danmuck/pdcpmux/internal/testutil/pdcptest"
	"github.com/danmuck/pdcpmux/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	srv  *Server
	mux  *pdcp.Multiplexer
	ents *pdcptest.Entities
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ents := &pdcptest.Entities{}
	m, err := pdcp.New(pdcp.DefaultOptions(ents.Factory))
	if err != nil {
		t.Fatalf("new multiplexer: %v", err)
	}
	m.Init(&pdcptest.Transport{}, &pdcptest.Aggregation{}, &pdcptest.ControlPlane{}, &pdcptest.Gateway{}, zerolog.Nop(), 0, pdcp.DirectionUplink)
	s := New("pdcpctl-test", ":0", nil, m, opts...)
	s.RegisterRoutes()
	return &fixture{srv: s, mux: m, ents: ents}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status %d", rr.Code)
	}
	var body map[string]any
	decode(t, rr, &body)
	if body["service"] != "pdcpctl-test" || body["status"] != "ok" {
		t.Fatalf("unexpected health body: %#v", body)
	}

	if rr := f.do(t, http.MethodGet, "/ready", ""); rr.Code != http.StatusOK {
		t.Fatalf("ready status %d", rr.Code)
	}
	f.mux.Stop()
	if rr := f.do(t, http.MethodGet, "/ready", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("stopped multiplexer should not be ready, got %d", rr.Code)
	}
}

func TestBearersListsBothTables(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	f.mux.AddBearer(3, pdcp.Config{IsData: true})

	rr := f.do(t, http.MethodGet, "/bearers", "")
	var body struct {
		Primary uint32              `json:"primary_data_bearer"`
		Bearers []pdcp.BearerStatus `json:"bearers"`
	}
	decode(t, rr, &body)
	if len(body.Bearers) != pdcp.NumRadioBearers+pdcp.NumMCHLCIDs || body.Primary != 3 {
		t.Fatalf("unexpected listing: primary=%d n=%d", body.Primary, len(body.Bearers))
	}
	if !body.Bearers[0].Active || !body.Bearers[3].Active || body.Bearers[2].Active {
		t.Fatalf("unexpected activation: %+v", body.Bearers[:pdcp.NumRadioBearers])
	}
}

func TestGetBearer(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	f.mux.AddBearer(3, pdcp.Config{IsData: true})
	f.mux.AddBearerMRB(7, pdcp.Config{IsData: true})

	var st pdcp.BearerStatus
	decode(t, f.do(t, http.MethodGet, "/bearers/3", ""), &st)
	if !st.Active || st.Name != "RB3" || st.Multicast {
		t.Fatalf("unexpected bearer 3: %+v", st)
	}
	decode(t, f.do(t, http.MethodGet, "/bearers/4", ""), &st)
	if st.Active {
		t.Fatalf("bearer 4 should be inactive: %+v", st)
	}
	decode(t, f.do(t, http.MethodGet, "/bearers/7?table=mch", ""), &st)
	if !st.Active || !st.Multicast || st.Name != "MRB7" {
		t.Fatalf("unexpected mrb 7: %+v", st)
	}

	if rr := f.do(t, http.MethodGet, "/bearers/7", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unicast 7 should be out of range, got %d", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/bearers/x", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric lcid should be rejected, got %d", rr.Code)
	}
}

func TestPutTuningForwardsToPrimary(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	rr := f.do(t, http.MethodPut, "/tuning", `{"lwa_ratio":[2,1],"report_period":10,"timestamp":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("tuning status %d body=%s", rr.Code, rr.Body.String())
	}
	primary := f.ents.All[3]
	if primary.LWARatio != [2]uint32{2, 1} || primary.ReportPeriod != 10 || !primary.Timestamp {
		t.Fatalf("tuning not forwarded: %+v", primary)
	}
	if primary.EMARatio != ([2]uint32{}) || primary.Autoconfig {
		t.Fatalf("absent knobs must stay untouched: %+v", primary)
	}

	if rr := f.do(t, http.MethodPut, "/tuning", `{"ema_ratio":[3,2]}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid ema ratio should be rejected, got %d", rr.Code)
	}
	if rr := f.do(t, http.MethodPut, "/tuning", `{"lwa_ratio":[4294967295,1]}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("oversized lwa ratio should be rejected, got %d", rr.Code)
	}
	if primary.LWARatio != [2]uint32{2, 1} {
		t.Fatalf("rejected tuning must not reach the bearer: %+v", primary.LWARatio)
	}
	if rr := f.do(t, http.MethodPut, "/tuning", `{`); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body should be rejected, got %d", rr.Code)
	}
}

func TestResetAndReestablish(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	f.mux.AddBearer(2, pdcp.Config{IsControl: true})

	if rr := f.do(t, http.MethodPost, "/reestablish", ""); rr.Code != http.StatusOK {
		t.Fatalf("reestablish status %d", rr.Code)
	}
	if f.ents.All[2].Reestablished != 1 {
		t.Fatalf("active bearer should be reestablished")
	}

	if rr := f.do(t, http.MethodPost, "/reset", ""); rr.Code != http.StatusOK {
		t.Fatalf("reset status %d", rr.Code)
	}
	if f.mux.IsActive(2) || !f.mux.IsActive(0) {
		t.Fatalf("reset should leave only the default bearer active")
	}
}

func TestPDCPMetricsIncludesThroughput(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, WithThroughput(func() pdcp.AggregationMetrics {
		return pdcp.AggregationMetrics{ULThroughputBits: 800}
	}))
	f.ents.All[3].Snapshot = pdcp.Metrics{DuplicateCount: 2}

	var body struct {
		Metrics     pdcp.Metrics            `json:"metrics"`
		Aggregation pdcp.AggregationMetrics `json:"aggregation"`
	}
	decode(t, f.do(t, http.MethodGet, "/pdcp/metrics", ""), &body)
	if body.Metrics.DuplicateCount != 2 || body.Aggregation.ULThroughputBits != 800 {
		t.Fatalf("unexpected metrics body: %+v", body)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	f.do(t, http.MethodGet, "/health", "")

	rr := f.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "pdcpmux_http_requests_total") {
		t.Fatalf("expected pdcpmux metrics, status=%d", rr.Code)
	}
}

func TestMutatingRoutesRequireTokenWhenConfigured(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, WithAuth(auth.SharedToken("admin")))

	if rr := f.do(t, http.MethodPost, "/reset", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("reset without token should be rejected, got %d", rr.Code)
	}
	if f.ents.All[0].ResetCount != 0 {
		t.Fatalf("rejected reset must not reach the multiplexer")
	}

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	req.Header.Set("Authorization", "Bearer admin")
	rr := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset with token failed: %d", rr.Code)
	}

	if rr := f.do(t, http.MethodGet, "/bearers", ""); rr.Code != http.StatusOK {
		t.Fatalf("read routes stay open, got %d", rr.Code)
	}
}
