package uploads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSniffImage(t *testing.T) {
	r, contentType, err := SniffImage(bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	replayed, _ := io.ReadAll(r)
	if !bytes.Equal(replayed, pngHeader) {
		t.Fatalf("sniffed bytes were not replayed")
	}

	if _, _, err := SniffImage(strings.NewReader("plain text")); !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("expected ErrNotAnImage, got %v", err)
	}
}

func TestServeFromMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	obj, err := store.Put(context.Background(), "card.png", "image/png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	h := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Get("/uploads/{fileId}", h.Serve)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, URL(obj.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("unexpected content type %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), pngHeader) {
		t.Fatalf("unexpected body")
	}

	if err := store.Delete(context.Background(), obj.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, URL(obj.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}
