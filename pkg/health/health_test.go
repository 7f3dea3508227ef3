package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/clock"
)

func staticCheck(s Status) CheckFunc {
	return func(ctx context.Context) Check {
		return Check{Status: s}
	}
}

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker()

	if hc == nil {
		t.Fatal("NewHealthChecker returned nil")
	}
	if hc.checks == nil || hc.readyChecks == nil || hc.liveChecks == nil {
		t.Error("check maps not initialized")
	}
}

func TestRegisterChecksAreSeparate(t *testing.T) {
	hc := NewHealthChecker()

	var general, ready, live int
	hc.RegisterCheck("general", func(ctx context.Context) Check {
		general++
		return Check{Status: StatusHealthy}
	})
	hc.RegisterReadinessCheck("ready", func(ctx context.Context) Check {
		ready++
		return Check{Status: StatusHealthy}
	})
	hc.RegisterLivenessCheck("live", func(ctx context.Context) Check {
		live++
		return Check{Status: StatusHealthy}
	})

	ctx := context.Background()
	if resp := hc.Check(ctx); len(resp.Checks) != 1 {
		t.Errorf("Check ran %d checks, want 1", len(resp.Checks))
	}
	if resp := hc.CheckReadiness(ctx); len(resp.Checks) != 1 {
		t.Errorf("CheckReadiness ran %d checks, want 1", len(resp.Checks))
	}
	if resp := hc.CheckLiveness(ctx); len(resp.Checks) != 1 {
		t.Errorf("CheckLiveness ran %d checks, want 1", len(resp.Checks))
	}
	if general != 1 || ready != 1 || live != 1 {
		t.Errorf("calls general=%d ready=%d live=%d, want 1 each", general, ready, live)
	}
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name           string
		checkStatuses  []Status
		expectedStatus Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"one unhealthy", []Status{StatusHealthy, StatusUnhealthy}, StatusUnhealthy},
		{"degraded and unhealthy", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
		{"no checks", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, status := range tt.checkStatuses {
				hc.RegisterCheck(string(rune('a'+i)), staticCheck(status))
			}

			resp := hc.Check(context.Background())
			if resp.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, resp.Status)
			}
		})
	}
}

func TestCheckNameDefaultsToRegisteredName(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("anonymous", staticCheck(StatusHealthy))

	resp := hc.Check(context.Background())
	if got := resp.Checks["anonymous"].Name; got != "anonymous" {
		t.Errorf("expected name 'anonymous', got %q", got)
	}
}

func TestCheckTimestampAndUptime(t *testing.T) {
	mc := clock.NewManual(time.UnixMilli(1_000_000))
	hc := NewHealthCheckerWithClock(mc)
	mc.Advance(90 * time.Second)

	resp := hc.Check(context.Background())
	if !resp.Timestamp.Equal(mc.Now()) {
		t.Errorf("timestamp %v, want %v", resp.Timestamp, mc.Now())
	}
	if resp.Uptime != 90*time.Second {
		t.Errorf("uptime %v, want 90s", resp.Uptime)
	}
}

func TestCheckDuration(t *testing.T) {
	hc := NewHealthChecker()

	sleepDuration := 10 * time.Millisecond
	hc.RegisterCheck("slow", func(ctx context.Context) Check {
		time.Sleep(sleepDuration)
		return Check{Status: StatusHealthy}
	})

	check := hc.Check(context.Background()).Checks["slow"]
	if check.Duration < sleepDuration {
		t.Errorf("duration %v less than sleep time %v", check.Duration, sleepDuration)
	}
	if check.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
}

func TestCheckPassesContext(t *testing.T) {
	type key struct{}
	hc := NewHealthChecker()

	var seen any
	hc.RegisterCheck("ctx", func(ctx context.Context) Check {
		seen = ctx.Value(key{})
		return Check{Status: StatusHealthy}
	})

	hc.Check(context.WithValue(context.Background(), key{}, "v"))
	if seen != "v" {
		t.Errorf("check saw context value %v, want v", seen)
	}
}

func TestSimpleCheck(t *testing.T) {
	check := SimpleCheck("process")(context.Background())

	if check.Name != "process" {
		t.Errorf("expected name 'process', got %s", check.Name)
	}
	if check.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", check.Status)
	}
}

func TestDatabaseCheck(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		expectedStatus Status
		expectedMsg    string
	}{
		{"connected", nil, StatusHealthy, "Connected"},
		{"connection error", errors.New("connection refused"), StatusUnhealthy, "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := DatabaseCheck(func(ctx context.Context) error {
				return tt.pingErr
			})(context.Background())

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if check.Message != tt.expectedMsg {
				t.Errorf("expected message %q, got %q", tt.expectedMsg, check.Message)
			}
			if check.Name != "database" {
				t.Errorf("expected name 'database', got %s", check.Name)
			}
		})
	}
}

func TestHeartbeatCheck(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	mc := clock.NewManual(now)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name           string
		last           *time.Time
		err            error
		expectedStatus Status
	}{
		{"fresh", at(10 * time.Second), nil, StatusHealthy},
		{"two intervals", at(time.Minute), nil, StatusHealthy},
		{"overdue", at(2 * time.Minute), nil, StatusDegraded},
		{"at threshold", at(5 * time.Minute), nil, StatusDegraded},
		{"past threshold", at(6 * time.Minute), nil, StatusUnhealthy},
		{"never", nil, nil, StatusUnhealthy},
		{"store error", nil, errors.New("boom"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := HeartbeatCheck(func(ctx context.Context) (*time.Time, error) {
				return tt.last, tt.err
			}, mc, 30*time.Second, 5*time.Minute)(context.Background())

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s (%s)", tt.expectedStatus, check.Status, check.Message)
			}
			if check.Name != "heartbeat" {
				t.Errorf("expected name 'heartbeat', got %s", check.Name)
			}
		})
	}
}

func TestSharedHomeCheck(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	mc := clock.NewManual(now)
	fresh := now.Add(-30 * time.Second)
	stale := now.Add(-10 * time.Minute)

	tests := []struct {
		name           string
		updated        *time.Time
		err            error
		expectedStatus Status
	}{
		{"fresh", &fresh, nil, StatusHealthy},
		{"stale", &stale, nil, StatusDegraded},
		{"missing", nil, nil, StatusDegraded},
		{"read error", nil, errors.New("permission denied"), StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := SharedHomeCheck(func() (*time.Time, error) {
				return tt.updated, tt.err
			}, mc, 2*time.Minute)(context.Background())

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
		})
	}
}

func TestClockOffsetCheck(t *testing.T) {
	d := func(v time.Duration) *time.Duration { return &v }

	tests := []struct {
		name           string
		offsets        map[string]*time.Duration
		err            error
		expectedStatus Status
	}{
		{"in sync", map[string]*time.Duration{"a": d(50 * time.Millisecond), "b": d(-2 * time.Second)}, nil, StatusHealthy},
		{"ahead", map[string]*time.Duration{"a": d(10 * time.Second)}, nil, StatusDegraded},
		{"behind", map[string]*time.Duration{"a": d(-10 * time.Second)}, nil, StatusDegraded},
		{"unknown offset", map[string]*time.Duration{"a": nil}, nil, StatusHealthy},
		{"query error", nil, errors.New("timeout"), StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := ClockOffsetCheck(func(ctx context.Context) (map[string]*time.Duration, error) {
				return tt.offsets, tt.err
			}, 5*time.Second)(context.Background())

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			for node := range tt.offsets {
				if _, ok := check.Details[node]; !ok {
					t.Errorf("node %s missing from details", node)
				}
			}
		})
	}
}

func TestMembershipCheck(t *testing.T) {
	check := MembershipCheck(func() (int, int) { return 2, 3 })(context.Background())
	if check.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", check.Status)
	}
	if check.Details["live_nodes"] != 2 || check.Details["total_nodes"] != 3 {
		t.Errorf("unexpected details %v", check.Details)
	}

	check = MembershipCheck(func() (int, int) { return 0, 0 })(context.Background())
	if check.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy with no live nodes, got %s", check.Status)
	}
}

func TestLockCleanupCheck(t *testing.T) {
	tests := []struct {
		name           string
		deleted        int64
		done           bool
		err            error
		expectedStatus Status
	}{
		{"pending", 0, false, nil, StatusHealthy},
		{"done", 3, true, nil, StatusHealthy},
		{"failed", 0, true, errors.New("db down"), StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := LockCleanupCheck(func() (int64, bool, error) {
				return tt.deleted, tt.done, tt.err
			})(context.Background())

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if check.Details["done"] != tt.done {
				t.Errorf("expected done=%v in details, got %v", tt.done, check.Details["done"])
			}
		})
	}
}

func TestHTTPHandler(t *testing.T) {
	tests := []struct {
		name         string
		checkStatus  Status
		expectedCode int
	}{
		{"healthy returns 200", StatusHealthy, http.StatusOK},
		{"degraded returns 200", StatusDegraded, http.StatusOK},
		{"unhealthy returns 503", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterCheck("test", staticCheck(tt.checkStatus))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()

			hc.HTTPHandler()(rec, req)

			if rec.Code != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, rec.Code)
			}
			if rec.Header().Get("Content-Type") != "application/json" {
				t.Error("expected Content-Type application/json")
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.checkStatus {
				t.Errorf("expected response status %s, got %s", tt.checkStatus, resp.Status)
			}
		})
	}
}

func TestBinaryHandlers(t *testing.T) {
	tests := []struct {
		name         string
		checkStatus  Status
		expectedCode int
	}{
		{"healthy returns 200", StatusHealthy, http.StatusOK},
		{"degraded returns 503", StatusDegraded, http.StatusServiceUnavailable},
		{"unhealthy returns 503", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run("ready "+tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterReadinessCheck("test", staticCheck(tt.checkStatus))

			rec := httptest.NewRecorder()
			hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, rec.Code)
			}
		})
		t.Run("live "+tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterLivenessCheck("test", staticCheck(tt.checkStatus))

			rec := httptest.NewRecorder()
			hc.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

			if rec.Code != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, rec.Code)
			}
		})
	}
}

func TestConcurrentCheckRegistration(t *testing.T) {
	hc := NewHealthChecker()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			hc.RegisterCheck(string(rune('A'+i)), staticCheck(StatusHealthy))
		}(i)
		go func() {
			defer wg.Done()
			hc.Check(context.Background())
		}()
	}
	wg.Wait()

	if got := len(hc.Check(context.Background()).Checks); got != 50 {
		t.Errorf("expected 50 checks, got %d", got)
	}
}
