package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzHandlerAllHealthy(t *testing.T) {
	r := NewRegistry("cluster", "transport")
	r.Set("cluster", true, "")
	r.Set("transport", true, "")

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	r.HealthzHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != "healthy" {
		t.Errorf("expected healthy, got %s", report.Status)
	}
}

func TestHealthzHandlerOneUnhealthy(t *testing.T) {
	r := NewRegistry("cluster", "transport")
	r.Set("cluster", true, "")
	r.Set("transport", false, "dial refused")

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	r.HealthzHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Components["transport"] != "unhealthy: dial refused" {
		t.Errorf("unexpected transport status: %s", report.Components["transport"])
	}
}

func TestReadyzHandlerMissingCriticalComponent(t *testing.T) {
	r := NewRegistry("cluster", "transport")
	r.Set("cluster", true, "")

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()
	r.ReadyzHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != "not_ready" {
		t.Errorf("expected not_ready, got %s", report.Status)
	}
}

func TestLivezHandlerAlwaysOK(t *testing.T) {
	r := NewRegistry()
	req := httptest.NewRequest("GET", "/livez", nil)
	w := httptest.NewRecorder()
	r.LivezHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
