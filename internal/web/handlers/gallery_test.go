package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiosklabs/facegate/internal/gallery"
	"github.com/kiosklabs/facegate/internal/store"
	"github.com/kiosklabs/facegate/internal/store/mock"
)

func seededGallery(t *testing.T) (*gallery.Store, *mock.Templates) {
	t.Helper()
	g := gallery.NewStore()
	templates := mock.NewTemplates()

	enrolled := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, id := range []struct{ id, name string }{
		{"emp-001", "Alice"},
		{"emp-002", "Bob"},
	} {
		g.Publish(gallery.Template{ID: id.id, Name: id.name, Vector: []float32{1, 0}, EnrolledAt: enrolled})
		if err := templates.Publish(context.Background(), store.StoredTemplate{
			ID: id.id, Name: id.name, Embedding: []float32{1, 0}, Dim: 2, EnrolledAt: enrolled,
		}); err != nil {
			t.Fatalf("seeding templates: %v", err)
		}
	}
	return g, templates
}

func TestGalleryList(t *testing.T) {
	g, templates := seededGallery(t)
	h := NewGalleryHandler(g, templates)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gallery", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"].(float64) != 2 {
		t.Errorf("expected 2 identities, got %v", body["count"])
	}
	identities := body["identities"].([]any)
	first := identities[0].(map[string]any)
	if first["id"] != "emp-001" || first["name"] != "Alice" {
		t.Errorf("unexpected first identity: %v", first)
	}
	if _, ok := first["embedding"]; ok {
		t.Error("embedding vectors must not leak through the API")
	}
}

func TestGalleryList_ByName(t *testing.T) {
	g, templates := seededGallery(t)
	h := NewGalleryHandler(g, templates)

	// Lookup is case- and diacritic-insensitive.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gallery?name=al%C3%ADce", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["id"] != "emp-001" || body["name"] != "Alice" {
		t.Errorf("unexpected identity: %v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/gallery?name=nobody", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown name, got %d", rec.Code)
	}
}

func TestGalleryGet(t *testing.T) {
	g, templates := seededGallery(t)
	h := NewGalleryHandler(g, templates)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/gallery/emp-001", nil),
		map[string]string{"id": "emp-001"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["name"] != "Alice" {
		t.Errorf("expected Alice, got %v", body["name"])
	}
}

func TestGalleryGet_NotFound(t *testing.T) {
	g, templates := seededGallery(t)
	h := NewGalleryHandler(g, templates)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/gallery/emp-999", nil),
		map[string]string{"id": "emp-999"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGalleryDelete(t *testing.T) {
	g, templates := seededGallery(t)
	h := NewGalleryHandler(g, templates)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodDelete, "/api/v1/gallery/emp-001", nil),
		map[string]string{"id": "emp-001"})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := g.Get("emp-001"); ok {
		t.Error("identity must be gone from the gallery")
	}
	if _, ok := templates.Get("emp-001"); ok {
		t.Error("identity must be gone from the template store")
	}
	if g.Len() != 1 {
		t.Errorf("other identities must survive, got %d", g.Len())
	}
}

func TestGalleryDelete_StoreFailureKeepsGallery(t *testing.T) {
	g, templates := seededGallery(t)
	templates.DeleteError = errors.New("db down")
	h := NewGalleryHandler(g, templates)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodDelete, "/api/v1/gallery/emp-001", nil),
		map[string]string{"id": "emp-001"})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	// The gallery keeps matching until the store delete succeeds.
	if _, ok := g.Get("emp-001"); !ok {
		t.Error("gallery must be untouched when the store delete fails")
	}
}
