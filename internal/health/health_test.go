package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckerBasic(t *testing.T) {
	checker := NewChecker("1.0.0", 5*time.Second)

	response := checker.Check(context.Background())
	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if response.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", response.Version)
	}
}

func TestDeepCheckAllHealthy(t *testing.T) {
	checker := NewChecker("1.0.0", 5*time.Second)
	checker.Register("database", func(context.Context) error { return nil })
	checker.Register("redis", func(context.Context) error { return nil })

	response := checker.DeepCheck(context.Background())
	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if len(response.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(response.Components))
	}
}

func TestDeepCheckRequiredFailure(t *testing.T) {
	checker := NewChecker("1.0.0", 5*time.Second)
	checker.Register("database", func(context.Context) error { return nil })
	checker.Register("redis", func(context.Context) error { return errors.New("connection refused") })

	response := checker.DeepCheck(context.Background())
	if response.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}
	if response.Components["redis"].Status != StatusUnhealthy {
		t.Errorf("expected redis unhealthy, got %s", response.Components["redis"].Status)
	}
	if response.Components["database"].Status != StatusHealthy {
		t.Errorf("expected database healthy, got %s", response.Components["database"].Status)
	}
}

func TestDeepCheckOptionalFailureDegrades(t *testing.T) {
	checker := NewChecker("1.0.0", 5*time.Second)
	checker.Register("database", func(context.Context) error { return nil })
	checker.RegisterOptional("storage", func(context.Context) error { return errors.New("bucket unreachable") })

	response := checker.DeepCheck(context.Background())
	if response.Status != StatusDegraded {
		t.Errorf("expected status degraded, got %s", response.Status)
	}
	if response.Components["storage"].Status != StatusDegraded {
		t.Errorf("expected storage degraded, got %s", response.Components["storage"].Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	handler := NewHandler(NewChecker("1.0.0", time.Second))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	handler.Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
}

func TestReadinessHandlerUnhealthy(t *testing.T) {
	checker := NewChecker("1.0.0", time.Second)
	checker.Register("database", func(context.Context) error { return errors.New("db down") })
	handler := NewHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestReadinessHandlerDegradedStillServes(t *testing.T) {
	checker := NewChecker("1.0.0", time.Second)
	checker.RegisterOptional("storage", func(context.Context) error { return errors.New("slow") })
	handler := NewHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	handler.Readiness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 for degraded service, got %d", w.Code)
	}
}

func TestHealthHandlerDeepQuery(t *testing.T) {
	checker := NewChecker("1.0.0", time.Second)
	checker.Register("database", func(context.Context) error { return nil })
	handler := NewHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/health?deep=true", nil)
	w := httptest.NewRecorder()
	handler.Health(w, req)

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Components) == 0 {
		t.Error("deep check should include components")
	}
}
