package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kiosklabs/facegate/internal/enroll"
	"github.com/kiosklabs/facegate/internal/gallery"
	"github.com/kiosklabs/facegate/internal/store/mock"
	"github.com/kiosklabs/facegate/internal/vision"
)

// blockingSource keeps an enrollment run alive until the test releases it.
type blockingSource struct {
	release chan struct{}
}

func (s *blockingSource) Next(ctx context.Context) (vision.Frame, error) {
	select {
	case <-ctx.Done():
		return vision.Frame{}, ctx.Err()
	case <-s.release:
		return vision.Frame{}, vision.ErrDeviceUnavailable
	}
}

func (s *blockingSource) Close() error { return nil }

type noopDetector struct{}

func (noopDetector) Detect(ctx context.Context, frame vision.Frame) ([]vision.Box, error) {
	return nil, nil
}

type noopEmbedder struct{}

func (noopEmbedder) Embed(ctx context.Context, faceJPEG []byte) ([]float32, error) {
	return []float32{1}, nil
}

func testRegistry(t *testing.T) (*enroll.Registry, *blockingSource, *vision.Lease) {
	t.Helper()
	src := &blockingSource{release: make(chan struct{})}
	lease := vision.NewLease()
	reg := enroll.NewRegistry(
		noopDetector{},
		noopEmbedder{},
		func() (vision.FrameSource, error) { return src, nil },
		lease,
		gallery.NewStore(),
		mock.NewTemplates(),
		enroll.Options{Samples: 3, MinFaceSize: 80, FaceCropSize: 160},
	)
	return reg, src, lease
}

func TestEnrollStart(t *testing.T) {
	reg, src, _ := testRegistry(t)
	defer close(src.release)
	h := NewEnrollHandler(reg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enroll",
		strings.NewReader(`{"identity_id":"emp-001","name":"Alice"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["run_id"] == "" {
		t.Error("expected a run_id")
	}
}

func TestEnrollStart_InvalidBody(t *testing.T) {
	reg, src, _ := testRegistry(t)
	defer close(src.release)
	h := NewEnrollHandler(reg)

	for _, payload := range []string{"not json", `{"identity_id":""}`, `{"name":"Alice"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/enroll", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		h.Start(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %q: expected 400, got %d", payload, rec.Code)
		}
	}
}

func TestEnrollStart_DuplicateRejected(t *testing.T) {
	reg, src, _ := testRegistry(t)
	defer close(src.release)
	h := NewEnrollHandler(reg)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/enroll",
		strings.NewReader(`{"identity_id":"emp-001","name":"Alice"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, first)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first start: expected 202, got %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/enroll",
		strings.NewReader(`{"identity_id":"emp-001","name":"Alice"}`))
	rec = httptest.NewRecorder()
	h.Start(rec, second)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate start: expected 409, got %d", rec.Code)
	}
}

func TestEnrollStart_DeviceBusy(t *testing.T) {
	reg, src, lease := testRegistry(t)
	defer close(src.release)
	if err := lease.TryAcquire("recognize"); err != nil {
		t.Fatalf("acquiring lease: %v", err)
	}
	h := NewEnrollHandler(reg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enroll",
		strings.NewReader(`{"identity_id":"emp-001","name":"Alice"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 when the camera is held, got %d", rec.Code)
	}

	// The rejected start must not register a run.
	progress := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/enroll/emp-001", nil),
		map[string]string{"id": "emp-001"})
	rec = httptest.NewRecorder()
	h.Progress(rec, progress)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a capture that never started, got %d", rec.Code)
	}
}

func TestEnrollProgress(t *testing.T) {
	reg, src, _ := testRegistry(t)
	defer close(src.release)
	h := NewEnrollHandler(reg)

	start := httptest.NewRequest(http.MethodPost, "/api/v1/enroll",
		strings.NewReader(`{"identity_id":"emp-001","name":"Alice"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, start)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d", rec.Code)
	}

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/enroll/emp-001", nil),
		map[string]string{"id": "emp-001"})
	rec = httptest.NewRecorder()
	h.Progress(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["done"] != false {
		t.Errorf("run must still be capturing, got %v", body)
	}
}

func TestEnrollProgress_Unknown(t *testing.T) {
	reg, src, _ := testRegistry(t)
	defer close(src.release)
	h := NewEnrollHandler(reg)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/enroll/emp-999", nil),
		map[string]string{"id": "emp-999"})
	rec := httptest.NewRecorder()
	h.Progress(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestEnrollCancel_Idempotent(t *testing.T) {
	reg, src, _ := testRegistry(t)
	defer close(src.release)
	h := NewEnrollHandler(reg)

	// Cancelling an unknown identity is a no-op.
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodDelete, "/api/v1/enroll/emp-999", nil),
		map[string]string{"id": "emp-999"})
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
