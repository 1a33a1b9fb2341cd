package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/engine/archive"
	"github.com/rshade/greenreport/internal/llm"
	"github.com/rshade/greenreport/internal/report"
	"github.com/rshade/greenreport/internal/summary"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Generate(ctx context.Context, req engine.Request) (*report.Report, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.Report), args.Error(1)
}

func (m *MockService) DataSummary(ctx context.Context, months int, factor string) (*summary.DataSummary, error) {
	args := m.Called(ctx, months, factor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*summary.DataSummary), args.Error(1)
}

func (m *MockService) Factors(factor string) (carbon.FactorInfo, error) {
	args := m.Called(factor)
	return args.Get(0).(carbon.FactorInfo), args.Error(1)
}

func (m *MockService) Readings(
	ctx context.Context,
	q engine.ReadingQuery,
	factor string,
) ([]carbon.ReadingEmission, error) {
	args := m.Called(ctx, q, factor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]carbon.ReadingEmission), args.Error(1)
}

func (m *MockService) WindowSummary(ctx context.Context, q engine.WindowQuery) (*summary.WindowSummary, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*summary.WindowSummary), args.Error(1)
}

func (m *MockService) HourlyTrend(ctx context.Context, q engine.WindowQuery) (*summary.HourlyTrend, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*summary.HourlyTrend), args.Error(1)
}

func (m *MockService) RecentReadings(
	ctx context.Context,
	limit int,
	deviceID, factor string,
) ([]carbon.ReadingEmission, error) {
	args := m.Called(ctx, limit, deviceID, factor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]carbon.ReadingEmission), args.Error(1)
}

func (m *MockService) CheckComponents(ctx context.Context) engine.ComponentReport {
	args := m.Called(ctx)
	return args.Get(0).(engine.ComponentReport)
}

func (m *MockService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockService) ModelConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

type fakeArchive struct {
	reports map[string]*report.Report
	err     error
}

func (f *fakeArchive) Get(id string) (*report.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return r, nil
}

func (f *fakeArchive) List() ([]archive.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]archive.Summary, 0, len(f.reports))
	for id, r := range f.reports {
		out = append(out, archive.Summary{ID: id, Kind: r.Metadata.ReportType, ModelUsed: r.Metadata.ModelUsed})
	}
	return out, nil
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(svc Service, opts ...Option) http.Handler {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewServer(Config{Addr: ":0"}, svc, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantCode   int
		wantHealth string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Ping", mock.Anything).Return(tt.pingErr)
			svc.On("ModelConfigured").Return(false)

			w, body := do(t, newTestServer(svc), http.MethodGet, "/health", "")

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantHealth, body["overall_health"])
			assert.Equal(t, "running", body["status"])
			assert.NotEmpty(t, w.Header().Get(requestIDHeader))
			svc.AssertExpectations(t)
		})
	}
}

func TestGenerateReport(t *testing.T) {
	svc := new(MockService)
	rep := &report.Report{
		Metadata:   report.Metadata{ReportID: "01J000", ModelUsed: "test-model", ReportType: report.KindFull},
		RawContent: "reply",
	}
	svc.On("Generate", mock.Anything, engine.Request{Months: 2, ReportType: "full"}).Return(rep, nil)

	w, body := do(t, newTestServer(svc), http.MethodPost, "/generate_report", `{"months":2,"report_type":"full"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.NotContains(t, body, "message")
	got := body["report"].(map[string]any)
	assert.Equal(t, "reply", got["raw_content"])
	svc.AssertExpectations(t)
}

func TestGenerateReport_TestModeAndEmptyBody(t *testing.T) {
	svc := new(MockService)
	svc.On("Generate", mock.Anything, engine.Request{TestMode: true}).
		Return(&report.Report{Metadata: report.Metadata{ModelUsed: engine.TestModeModel}}, nil)
	svc.On("Generate", mock.Anything, engine.Request{}).
		Return(&report.Report{Metadata: report.Metadata{ModelUsed: "test-model"}}, nil)
	h := newTestServer(svc)

	w, body := do(t, h, http.MethodPost, "/generate_report", `{"test_mode":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["message"], "test mode")

	w, _ = do(t, h, http.MethodPost, "/generate_report", "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestGenerateReport_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"missing field", fmt.Errorf("day 2025-02-01: %w", carbon.ErrMissingField), http.StatusUnprocessableEntity, KindMissingField},
		{"unknown factor", fmt.Errorf("%w: %q", carbon.ErrUnknownFactor, "lignite"), http.StatusBadRequest, KindUnknownFactor},
		{"invalid report type", report.ErrInvalidReportType, http.StatusBadRequest, KindInvalidRequest},
		{"no data", engine.ErrNoData, http.StatusNotFound, KindNoData},
		{
			"external call",
			fmt.Errorf("%w: %w", engine.ErrGenerationFailed, llm.ErrExternalCall),
			http.StatusBadGateway, KindExternalCallFailed,
		},
		{
			"model not configured",
			fmt.Errorf("%w: %w", engine.ErrGenerationFailed, engine.ErrUnavailable),
			http.StatusServiceUnavailable, KindUnavailable,
		},
		{"generation failed", engine.ErrGenerationFailed, http.StatusInternalServerError, KindGenerationFailed},
		{"deadline", fmt.Errorf("querying readings: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Generate", mock.Anything, mock.Anything).Return(nil, tt.err)

			w, body := do(t, newTestServer(svc), http.MethodPost, "/generate_report", `{}`)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantKind, body["error"])
			assert.Equal(t, tt.err.Error(), body["details"])
			assert.Equal(t, "2025-03-01T12:00:00Z", body["timestamp"])
		})
	}
}

func TestGenerateReport_InvalidJSON(t *testing.T) {
	svc := new(MockService)

	w, body := do(t, newTestServer(svc), http.MethodPost, "/generate_report", `{"months":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidRequest, body["error"])
	svc.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestDataSummary(t *testing.T) {
	svc := new(MockService)
	ds := &summary.DataSummary{
		DataAvailability: summary.Availability{DailyRecords: 3, DevicesTracked: 1},
		DeviceStatistics: []carbon.DeviceStats{},
	}
	svc.On("DataSummary", mock.Anything, 6, "coal").Return(ds, nil)
	svc.On("DataSummary", mock.Anything, engine.DefaultMonths, "").Return(ds, nil)
	h := newTestServer(svc)

	w, body := do(t, h, http.MethodGet, "/data_summary?months=6&factor=coal", "")
	require.Equal(t, http.StatusOK, w.Code)
	avail := body["data_availability"].(map[string]any)
	assert.InDelta(t, 3, avail["daily_records"], 0)

	w, _ = do(t, h, http.MethodGet, "/data_summary", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, h, http.MethodGet, "/data_summary?months=three", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidRequest, body["error"])
	svc.AssertExpectations(t)
}

func TestCarbonFactors(t *testing.T) {
	svc := new(MockService)
	info := carbon.NewEngineWithFactor(carbon.DefaultFactorTable(), carbon.CustomFactor(0.5)).FactorInfo()
	svc.On("Factors", "0.5").Return(info, nil)
	svc.On("Factors", "lignite").Return(carbon.FactorInfo{}, carbon.ErrUnknownFactor)
	h := newTestServer(svc)

	w, body := do(t, h, http.MethodGet, "/carbon_factors?factor=0.5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.5, body["factor_value"], 1e-9)
	assert.Equal(t, "custom", body["factor_source"])

	w, body = do(t, h, http.MethodGet, "/carbon_factors?factor=lignite", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindUnknownFactor, body["error"])
}

func TestCarbonReadings(t *testing.T) {
	svc := new(MockService)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	stop := start.Add(2 * time.Hour)
	want := engine.ReadingQuery{DeviceID: "dev-1", Start: start, Stop: stop, Limit: 50}
	rows := []carbon.ReadingEmission{{Reading: carbon.Reading{DeviceID: "dev-1", Timestamp: start}}}
	svc.On("Readings", mock.Anything, want, "").Return(rows, nil)
	svc.On("Readings", mock.Anything, engine.ReadingQuery{
		Start: fixedNow.Add(-defaultReadingWindow), Stop: fixedNow,
	}, "").Return(nil, engine.ErrNoData)
	h := newTestServer(svc)

	w, body := do(t, h, http.MethodGet,
		"/carbon/readings?device_id=dev-1&start=2025-02-01T00:00:00Z&stop=2025-02-01T02:00:00Z&limit=50", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 1, body["count"], 0)

	w, body = do(t, h, http.MethodGet, "/carbon/readings", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, KindNoData, body["error"])

	w, _ = do(t, h, http.MethodGet, "/carbon/readings?start=2025-02-01T02:00:00Z&stop=2025-02-01T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, h, http.MethodGet, "/carbon/readings?start=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestWindowSummary(t *testing.T) {
	svc := new(MockService)
	stop := time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC)
	svc.On("WindowSummary", mock.Anything, engine.WindowQuery{
		TimeRange: "6h", DeviceID: "dev-1", Stop: stop, Factor: "coal",
	}).Return(&summary.WindowSummary{TimeRange: "6h", TotalReadings: 12, CarbonKg: 0.5}, nil)
	svc.On("WindowSummary", mock.Anything, engine.WindowQuery{TimeRange: "2h"}).
		Return(nil, fmt.Errorf("%w %q", engine.ErrInvalidTimeRange, "2h"))
	h := newTestServer(svc)

	w, body := do(t, h, http.MethodGet,
		"/api/summary?timeRange=6h&device_id=dev-1&factor=coal&stop=2025-02-01T06:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "6h", body["time_range"])
	assert.InDelta(t, 12, body["total_readings"], 0)
	assert.InDelta(t, 0.5, body["total_carbon_kg"], 1e-12)

	w, body = do(t, h, http.MethodGet, "/api/summary?timeRange=2h", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidRequest, body["error"])

	w, _ = do(t, h, http.MethodGet, "/api/summary?stop=noon", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestHourlyTrend(t *testing.T) {
	svc := new(MockService)
	hour := time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC)
	svc.On("HourlyTrend", mock.Anything, engine.WindowQuery{TimeRange: "7d"}).Return(&summary.HourlyTrend{
		TimeRange:  "7d",
		Data:       []summary.HourlyPoint{{Hour: hour, Readings: 4, EnergyKWh: 0.01}},
		TotalHours: 1,
	}, nil)
	svc.On("HourlyTrend", mock.Anything, engine.WindowQuery{}).Return(nil, engine.ErrUnavailable)
	h := newTestServer(svc)

	w, body := do(t, h, http.MethodGet, "/api/trend?timeRange=7d", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 1, body["total_hours"], 0)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "2025-02-28T10:00:00Z", data[0].(map[string]any)["hour"])

	w, body = do(t, h, http.MethodGet, "/api/trend", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, KindUnavailable, body["error"])
	svc.AssertExpectations(t)
}

func TestPowerData(t *testing.T) {
	svc := new(MockService)
	rows := []carbon.ReadingEmission{
		{Reading: carbon.Reading{DeviceID: "dev-1", Timestamp: fixedNow}},
		{Reading: carbon.Reading{DeviceID: "dev-1", Timestamp: fixedNow.Add(-time.Minute)}},
	}
	svc.On("RecentReadings", mock.Anything, engine.DefaultRecentLimit, "", "").Return(rows, nil)
	svc.On("RecentReadings", mock.Anything, 5, "dev-1", "nuclear").Return(rows[:1], nil)
	h := newTestServer(svc)

	w, body := do(t, h, http.MethodGet, "/api/power_data", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 2, body["count"], 0)
	assert.Len(t, body["data"], 2)

	w, body = do(t, h, http.MethodGet, "/api/power_data?limit=5&device_id=dev-1&factor=nuclear", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 1, body["count"], 0)

	w, body = do(t, h, http.MethodGet, "/api/power_data?limit=lots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 2, body["count"], 0)
	svc.AssertExpectations(t)
}

func TestTestComponents(t *testing.T) {
	svc := new(MockService)
	svc.On("CheckComponents", mock.Anything).Return(engine.ComponentReport{
		Database:      engine.StoreCheck{Status: engine.StatusConnected, TestQuery: true, SampleRecords: 3},
		Model:         engine.ModelCheck{Status: engine.StatusNotConfigured},
		Carbon:        engine.CarbonCheck{Status: engine.StatusInitialized},
		OverallStatus: engine.OverallIssues,
	})

	w, body := do(t, newTestServer(svc), http.MethodGet, "/test_components", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, engine.OverallIssues, body["overall_status"])
	assert.Equal(t, "2025-03-01T12:00:00Z", body["timestamp"])
	db := body["database"].(map[string]any)
	assert.Equal(t, engine.StatusConnected, db["status"])
	assert.Contains(t, body, "carbon_calculator")
}

func TestReports(t *testing.T) {
	rep := &report.Report{Metadata: report.Metadata{ReportID: "01JREPORT", ReportType: report.KindSummary}}
	arch := &fakeArchive{reports: map[string]*report.Report{"01JREPORT": rep}}
	h := newTestServer(new(MockService), WithArchive(arch))

	w, body := do(t, h, http.MethodGet, "/reports", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 1, body["count"], 0)

	w, body = do(t, h, http.MethodGet, "/reports/01JREPORT", "")
	require.Equal(t, http.StatusOK, w.Code)
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, "01JREPORT", meta["report_id"])

	w, body = do(t, h, http.MethodGet, "/reports/01JMISSING", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, KindNotFound, body["error"])
}

func TestReports_Unavailable(t *testing.T) {
	h := newTestServer(new(MockService))
	w, body := do(t, h, http.MethodGet, "/reports", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, KindUnavailable, body["error"])

	h = newTestServer(new(MockService), WithArchive(&fakeArchive{err: archive.ErrDisabled}))
	w, _ = do(t, h, http.MethodGet, "/reports/01JREPORT", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNotFoundListsEndpoints(t *testing.T) {
	w, body := do(t, newTestServer(new(MockService)), http.MethodGet, "/nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Endpoint not found", body["error"])
	assert.Contains(t, body["available_endpoints"], "POST /generate_report")
}

func TestMethodNotAllowed(t *testing.T) {
	w, body := do(t, newTestServer(new(MockService)), http.MethodGet, "/generate_report", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, KindMethodNotAllowed, body["error"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	svc := new(MockService)
	svc.On("Ping", mock.Anything).Return(nil)
	svc.On("ModelConfigured").Return(true)
	h := newTestServer(svc)

	const id = "6f1c1f5e-7a4f-4b53-9d42-2f0c3c8f1a11"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, id, w.Header().Get(requestIDHeader))
}

func TestUnroutedResponsesCarryRequestID(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		wantCode int
	}{
		{"not found", http.MethodGet, "/nope", http.StatusNotFound},
		{"method not allowed", http.MethodGet, "/generate_report", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, newTestServer(new(MockService)), tt.method, tt.target, "")

			assert.Equal(t, tt.wantCode, w.Code)
			assert.NotEmpty(t, w.Header().Get(requestIDHeader))
		})
	}
}

func TestRequestContextHasTimeout(t *testing.T) {
	const timeout = 5 * time.Second
	hasDeadline := mock.MatchedBy(func(ctx context.Context) bool {
		dl, ok := ctx.Deadline()
		return ok && time.Until(dl) <= timeout
	})
	svc := new(MockService)
	svc.On("Generate", hasDeadline, engine.Request{TestMode: true}).
		Return(&report.Report{Metadata: report.Metadata{ReportID: "r1"}}, nil)

	h := NewServer(Config{Timeout: timeout}, svc).Handler()
	w, _ := do(t, h, http.MethodPost, "/generate_report", `{"test_mode":true}`)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) mux.MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }),
		[]mux.MiddlewareFunc{mw("first"), mw("second")})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestRecoveryHandler(t *testing.T) {
	svc := new(MockService)
	svc.On("Factors", "").Run(func(mock.Arguments) { panic("boom") })

	w, _ := do(t, newTestServer(svc), http.MethodGet, "/carbon_factors", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewServer(Config{CORSOrigins: []string{"http://localhost:5173"}}, new(MockService)).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/generate_report", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := NewServer(Config{Addr: "127.0.0.1:0"}, new(MockService))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
