package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, report) {
	t.Helper()

	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var rep report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body, err)
	}
	return rec, rep
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()

	h := New(Check{Name: "failing", Probe: func(context.Context) error {
		return errors.New("down")
	}})

	rec, rep := serve(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rep.Status != "ok" {
		t.Errorf("body status = %q, want ok", rep.Status)
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	t.Parallel()

	h := New(
		Check{Name: "capture", Probe: func(context.Context) error { return nil }},
		Check{Name: "backend", Probe: func(context.Context) error { return nil }},
	)

	rec, rep := serve(t, h, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rep.Checks["capture"] != "ok" || rep.Checks["backend"] != "ok" {
		t.Errorf("checks = %v, want both ok", rep.Checks)
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	t.Parallel()

	h := New(
		Check{Name: "capture", Probe: func(context.Context) error { return nil }},
		Check{Name: "backend", Probe: func(context.Context) error {
			return errors.New("connection refused")
		}},
	)

	rec, rep := serve(t, h, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rep.Status != "fail" {
		t.Errorf("body status = %q, want fail", rep.Status)
	}
	if rep.Checks["capture"] != "ok" {
		t.Errorf("capture = %q, want ok", rep.Checks["capture"])
	}
	if rep.Checks["backend"] != "fail: connection refused" {
		t.Errorf("backend = %q, want the failure message", rep.Checks["backend"])
	}
}

func TestReadyz_NoChecks(t *testing.T) {
	t.Parallel()

	rec, rep := serve(t, New(), "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rep.Status != "ok" {
		t.Errorf("body status = %q, want ok", rep.Status)
	}
}

func TestReadyz_ChecksGetDeadline(t *testing.T) {
	t.Parallel()

	h := New(Check{Name: "deadline", Probe: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline set")
		}
		return nil
	}})

	rec, _ := serve(t, h, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (probe context must carry a deadline)", rec.Code)
	}
}
