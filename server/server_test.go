package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/config"
	"github.com/timpalpant/marketgame/metrics"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	params := marketgame.DefaultParams()
	params.Workers = 2
	return New(config.Default().Server, params, metrics.New(reg), reg)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSolve(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/solve",
		`{"matrix": [[10, 12.5], [-12.5, -10]], "companies": ["A", "B"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var sol marketgame.Solution
	if err := json.Unmarshal(rec.Body.Bytes(), &sol); err != nil {
		t.Fatal(err)
	}

	approx := cmpopts.EquateApprox(0, 1e-6)
	if diff := cmp.Diff([]float64{1, 0}, sol.FictitiousPlay, approx); diff != "" {
		t.Errorf("fictitious play (-want +got):\n%s", diff)
	}
	if len(sol.Replicator) != 2 {
		t.Errorf("expected replicator over 2 companies, got %v", sol.Replicator)
	}
	if diff := cmp.Diff([]string{"A", "B"}, sol.Equilibria.Players); diff != "" {
		t.Errorf("players (-want +got):\n%s", diff)
	}
	if len(sol.Equilibria.Equilibria) != 1 {
		t.Errorf("expected one equilibrium, got %v", sol.Equilibria.Equilibria)
	}
}

func TestSolve_DefaultCompanyNames(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodPost, "/v1/solve", `{"matrix": [[1, 0], [0, 2]]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var sol marketgame.Solution
	if err := json.Unmarshal(rec.Body.Bytes(), &sol); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"0", "1"}, sol.Equilibria.Players); diff != "" {
		t.Errorf("players (-want +got):\n%s", diff)
	}
}

func TestSolve_BadRequests(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{
		`{`,
		`{}`,
		`{"matrix": [[1, 2]]}`,
		`{"matrix": [[1, 2], [3, 4]], "companies": ["A"]}`,
		`{"matrix": [[1]], "dt": -1}`,
		`{"matrix": [[1]], "steps": 1000000}`,
	} {
		rec := do(t, s, http.MethodPost, "/v1/solve", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}

		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
			t.Errorf("%s: expected error body, got %s", body, rec.Body)
		}
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t)
	body := `{"observations": [
		{"area": "X", "month": "2025-01", "company": "A", "value": 50},
		{"area": "X", "month": "2025-01", "company": "B", "value": 50},
		{"area": "X", "month": "2025-02", "company": "A", "value": 60},
		{"area": "X", "month": "2025-02", "company": "B", "value": 40}
	], "influence": 0}`

	rec := do(t, s, http.MethodPost, "/v1/analyze", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	report, err := marketgame.ReadReport(rec.Body)
	if err != nil {
		t.Fatal(err)
	}

	if report.Params.Payoff.Influence != 0 || report.Params.Payoff.Cap != marketgame.DefaultCap {
		t.Errorf("unexpected payoff params: %+v", report.Params.Payoff)
	}

	second := report.Areas["X"].PerMonth[1]
	expected := [][]float64{{10, 10}, {-10, -10}}
	for i := range expected {
		if diff := cmp.Diff(expected[i], []float64(second.PayoffMatrix[i]), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("payoff row %d (-want +got):\n%s", i, diff)
		}
	}

	metricsRec := do(t, s, http.MethodGet, "/metrics", "")
	if !strings.Contains(metricsRec.Body.String(), `marketgame_transitions_analyzed_total{area="api"} 2`) {
		t.Errorf("expected transition counter in /metrics:\n%s", metricsRec.Body)
	}
}

func TestAnalyze_AreaLabelIsBounded(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"observations": [{"area": "area-%d", "month": "2025-01", "company": "A", "value": 1}]}`, i)
		if rec := do(t, s, http.MethodPost, "/v1/analyze", body); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
	}

	body := do(t, s, http.MethodGet, "/metrics", "").Body.String()
	if strings.Contains(body, `area="area-`) {
		t.Errorf("request area names leaked into metric labels:\n%s", body)
	}
	if !strings.Contains(body, `marketgame_transitions_analyzed_total{area="api"} 5`) {
		t.Errorf("expected all transitions under the api label:\n%s", body)
	}
}

func TestAnalyze_RejectsNegativeVolume(t *testing.T) {
	body := `{"observations": [{"area": "X", "month": "2025-01", "company": "A", "value": -1}]}`
	rec := do(t, newTestServer(t), http.MethodPost, "/v1/analyze", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := config.Default().Server
	cfg.Addr = "127.0.0.1:0"
	s := New(cfg, marketgame.DefaultParams(), nil, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
